package fs

import (
	"context"
	"sync/atomic"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Object Handles
// ============================================================================

// ObjectHandle is an open reference to a namespace entry.
//
// A handle pins the resolved identity of an entry (its backing object and its
// position under a parent) so that subsequent operations skip path
// resolution. Handles are reference counted: dup shares the handle between
// callers, and the backing store object is released when the last reference
// is closed.
//
// Handles are safe for concurrent use. The mutable per-handle state is the
// reference count only; everything else is fixed at open time.
type ObjectHandle struct {
	fs *Filesystem

	// id is the backing store object.
	id objstore.ObjectID

	// kind is the entry kind captured at open time.
	kind EntryKind

	// parentID and name locate the entry record so metadata updates on
	// write can find it. The root handle has parentID == NilObjectID.
	parentID objstore.ObjectID
	name     string

	// flags are the open flags the handle was created with.
	flags OpenFlags

	// chunkSize is the store placement hint recorded at creation.
	chunkSize uint64

	refs   atomic.Int32
	closed atomic.Bool
}

// newHandle wires a handle with a single reference and registers it with the
// filesystem's open-handle accounting.
func (f *Filesystem) newHandle(entry *DirEntry, parentID objstore.ObjectID, flags OpenFlags) *ObjectHandle {
	h := &ObjectHandle{
		fs:        f,
		id:        entry.ObjectID,
		kind:      entry.Kind,
		parentID:  parentID,
		name:      entry.Name,
		flags:     flags,
		chunkSize: entry.ChunkSize,
	}
	h.refs.Store(1)
	f.openHandles.Add(1)
	return h
}

// ID returns the identity of the backing store object.
func (h *ObjectHandle) ID() objstore.ObjectID {
	return h.id
}

// Kind returns the entry kind captured at open time.
func (h *ObjectHandle) Kind() EntryKind {
	return h.kind
}

// Name returns the entry name the handle was opened under. Empty for the
// root handle.
func (h *ObjectHandle) Name() string {
	return h.name
}

// Flags returns the open flags the handle was created with.
func (h *ObjectHandle) Flags() OpenFlags {
	return h.flags
}

// Dup acquires an additional reference to the handle. The handle stays open
// until every reference has been closed; duplicating a handle whose last
// reference is gone is an ErrInvalidArgument.
func (h *ObjectHandle) Dup() (*ObjectHandle, error) {
	for {
		refs := h.refs.Load()
		if refs <= 0 || h.closed.Load() {
			return nil, newError(ErrInvalidArgument, h.name, "handle already closed")
		}
		if h.refs.CompareAndSwap(refs, refs+1) {
			h.fs.openHandles.Add(1)
			return h, nil
		}
	}
}

// Close drops one reference. When the last reference is dropped the backing
// store object is released. Closing an already-closed handle is an
// ErrInvalidArgument.
func (h *ObjectHandle) Close(ctx context.Context) error {
	if h.refs.Add(-1) > 0 {
		h.fs.openHandles.Add(-1)
		return nil
	}
	if !h.closed.CompareAndSwap(false, true) {
		return newError(ErrInvalidArgument, h.name, "handle already closed")
	}
	h.fs.openHandles.Add(-1)
	if err := h.fs.store.CloseObject(ctx, h.id); err != nil {
		return wrapStoreError(err, h.name)
	}
	return nil
}

// isRoot reports whether the handle refers to the mount root.
func (h *ObjectHandle) isRoot() bool {
	return h.parentID == objstore.NilObjectID
}
