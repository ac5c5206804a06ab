// Package fs implements a POSIX-like filesystem layer on top of a flat
// object store.
//
// The namespace is built from store primitives: each directory is an object
// whose keyspace maps child names to encoded entry records, each file is an
// object whose payload holds the bytes, and symlinks are entry records
// carrying a literal target path. The store itself knows nothing about paths;
// everything path-shaped lives in this package.
//
// A Filesystem is obtained by mounting a formatted container (see Format and
// Mount) and exposes path-based operations plus handle-based I/O. All
// operations take a context and return explicit errors from the FSError
// taxonomy.
package fs

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Mount Flags and Options
// ============================================================================

// MountFlags control mount-wide behavior.
type MountFlags uint32

const (
	// MountReadOnly rejects every mutating operation with
	// ErrInvalidOperation.
	MountReadOnly MountFlags = 1 << iota

	// MountNoCache disables the lookup cache; every resolution step goes
	// to the store.
	MountNoCache

	// MountNoLock skips internal locking. The caller promises the mount is
	// used from a single goroutine.
	MountNoLock
)

// Options configure a mount.
type Options struct {
	// Flags are the mount-wide behavior flags.
	Flags MountFlags

	// UID and GID are the identity recorded on new entries and checked by
	// Access.
	UID uint32
	GID uint32
}

// rootMetaKey is the keyspace key on the root object holding the root's own
// entry record. The root has no parent directory, so its metadata lives with
// itself.
const rootMetaKey = "m:"

// defaultChunkSize is the payload chunk hint recorded when the caller passes
// zero.
const defaultChunkSize = 1 << 20

// maxNameLen bounds a single path component.
const maxNameLen = 255

// ============================================================================
// Filesystem
// ============================================================================

// Filesystem is a mounted namespace over one store container.
//
// A Filesystem is safe for concurrent use unless mounted with MountNoLock.
// It does not own the store: Umount releases the namespace's objects but the
// caller closes the store.
type Filesystem struct {
	store  objstore.Store
	conn   objstore.Connection
	rootID objstore.ObjectID
	flags  MountFlags
	uid    uint32
	gid    uint32

	cache entryCache
	root  *ObjectHandle

	openHandles atomic.Int64
	unmounted   atomic.Bool
}

// Format initializes an empty namespace in the container and returns the
// root directory's object identity.
//
// The identity is what Mount needs to find the namespace again; callers
// persist it out of band or hand it to peers through an exported mount blob.
// Formatting an already-formatted container creates a second, unrelated
// root.
func Format(ctx context.Context, store objstore.Store, mode uint32) (objstore.ObjectID, error) {
	rootID, err := store.CreateObject(ctx, 0, defaultChunkSize)
	if err != nil {
		return objstore.NilObjectID, wrapStoreError(err, "/")
	}

	now := time.Now()
	root := &DirEntry{
		Kind:      KindDirectory,
		Mode:      mode & modeMask,
		ObjectID:  rootID,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		ChunkSize: defaultChunkSize,
	}
	if err := store.PutValue(ctx, rootID, rootMetaKey, encodeEntry(root)); err != nil {
		return objstore.NilObjectID, wrapStoreError(err, "/")
	}
	if err := store.CloseObject(ctx, rootID); err != nil {
		return objstore.NilObjectID, wrapStoreError(err, "/")
	}

	logger.Info("Formatted namespace: root=%s", rootID)
	return rootID, nil
}

// Mount opens the namespace rooted at rootID and returns a ready Filesystem.
//
// The root object is held open for the lifetime of the mount.
func Mount(ctx context.Context, store objstore.Store, conn objstore.Connection, rootID objstore.ObjectID, opts Options) (*Filesystem, error) {
	if rootID == objstore.NilObjectID {
		return nil, newError(ErrInvalidArgument, "/", "nil root object identity")
	}

	if err := store.OpenObject(ctx, rootID); err != nil {
		return nil, wrapStoreError(err, "/")
	}

	data, err := store.GetValue(ctx, rootID, rootMetaKey)
	if err != nil {
		_ = store.CloseObject(ctx, rootID)
		return nil, wrapStoreError(err, "/")
	}
	rootEntry, err := decodeEntry("", data)
	if err != nil {
		_ = store.CloseObject(ctx, rootID)
		return nil, err
	}
	if rootEntry.Kind != KindDirectory {
		_ = store.CloseObject(ctx, rootID)
		return nil, newError(ErrNotADirectory, "/", "root object is not a directory")
	}

	f := &Filesystem{
		store:  store,
		conn:   conn,
		rootID: rootID,
		flags:  opts.Flags,
		uid:    opts.UID,
		gid:    opts.GID,
	}

	if opts.Flags&MountNoCache != 0 {
		f.cache = noopCache{}
	} else {
		f.cache = newLookupCache(opts.Flags&MountNoLock == 0)
	}

	f.root = f.newHandle(rootEntry, objstore.NilObjectID, OpenRead)

	logger.Info("Mounted namespace: conn=%s root=%s flags=%#x", conn, rootID, opts.Flags)
	return f, nil
}

// Umount releases the mount.
//
// Handles still open at unmount time are leaked deliberately: the store
// objects behind them stay open and a warning is logged, matching the
// behavior of forcing an unmount under live traffic. Operations on the
// filesystem after Umount fail with ErrInvalidOperation.
func (f *Filesystem) Umount(ctx context.Context) error {
	if !f.unmounted.CompareAndSwap(false, true) {
		return newError(ErrInvalidOperation, "/", "filesystem already unmounted")
	}

	// The root handle accounts for one open.
	if leaked := f.openHandles.Load() - 1; leaked > 0 {
		logger.Warn("Unmounting with %d open handles; their store objects are leaked", leaked)
	}

	f.cache.clear()
	f.openHandles.Add(-1)
	if err := f.store.CloseObject(ctx, f.rootID); err != nil {
		return wrapStoreError(err, "/")
	}

	logger.Info("Unmounted namespace: root=%s", f.rootID)
	return nil
}

// Root returns the long-lived handle for the mount root. The handle is owned
// by the filesystem; callers must not close it.
func (f *Filesystem) Root() *ObjectHandle {
	return f.root
}

// Connection returns the store connection the mount was created with.
func (f *Filesystem) Connection() objstore.Connection {
	return f.conn
}

// Flags returns the mount flags.
func (f *Filesystem) Flags() MountFlags {
	return f.flags
}

// CacheStats reports lookup cache hit/miss counters and current size.
func (f *Filesystem) CacheStats() (hits, misses uint64, size int) {
	return f.cache.stats()
}

// OpenHandles returns the number of handles currently open, excluding the
// filesystem-owned root handle.
func (f *Filesystem) OpenHandles() int64 {
	return f.openHandles.Load() - 1
}

// ============================================================================
// Internal Helpers
// ============================================================================

// checkMounted gates every operation entry point.
func (f *Filesystem) checkMounted() error {
	if f.unmounted.Load() {
		return newError(ErrInvalidOperation, "/", "filesystem is unmounted")
	}
	return nil
}

// checkWritable gates every mutating operation.
func (f *Filesystem) checkWritable(path string) error {
	if f.flags&MountReadOnly != 0 {
		return newError(ErrInvalidOperation, path, "filesystem is mounted read-only")
	}
	return nil
}

// getEntry loads the entry record for (parent, name), consulting the lookup
// cache first. A missing record is ErrNotFound.
func (f *Filesystem) getEntry(ctx context.Context, parentID objstore.ObjectID, name string) (*DirEntry, error) {
	if cached := f.cache.get(parentID, name); cached != nil {
		return cached, nil
	}

	data, err := f.store.GetValue(ctx, parentID, entryKey(name))
	if err != nil {
		return nil, wrapStoreError(err, name)
	}
	entry, err := decodeEntry(name, data)
	if err != nil {
		return nil, err
	}

	f.cache.put(parentID, entry)
	return entry, nil
}

// putEntry writes the entry record for (parent, entry.Name) and refreshes
// the cache.
func (f *Filesystem) putEntry(ctx context.Context, parentID objstore.ObjectID, entry *DirEntry) error {
	if err := f.store.PutValue(ctx, parentID, entryKey(entry.Name), encodeEntry(entry)); err != nil {
		return wrapStoreError(err, entry.Name)
	}
	f.cache.put(parentID, entry)
	return nil
}

// deleteEntry removes the entry record for (parent, name) and invalidates
// the cache.
func (f *Filesystem) deleteEntry(ctx context.Context, parentID objstore.ObjectID, name string) error {
	if err := f.store.DeleteKey(ctx, parentID, entryKey(name)); err != nil {
		return wrapStoreError(err, name)
	}
	f.cache.invalidate(parentID, name)
	return nil
}

// loadEntryFor returns the entry record a handle was opened under. The root
// handle's record lives on the root object itself.
func (f *Filesystem) loadEntryFor(ctx context.Context, h *ObjectHandle) (*DirEntry, error) {
	if h.isRoot() {
		data, err := f.store.GetValue(ctx, f.rootID, rootMetaKey)
		if err != nil {
			return nil, wrapStoreError(err, "/")
		}
		return decodeEntry("", data)
	}
	return f.getEntry(ctx, h.parentID, h.name)
}

// storeEntryFor writes back the entry record a handle was opened under.
func (f *Filesystem) storeEntryFor(ctx context.Context, h *ObjectHandle, entry *DirEntry) error {
	if h.isRoot() {
		if err := f.store.PutValue(ctx, f.rootID, rootMetaKey, encodeEntry(entry)); err != nil {
			return wrapStoreError(err, "/")
		}
		return nil
	}
	return f.putEntry(ctx, h.parentID, entry)
}

// validName rejects names the namespace cannot represent as keys.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return newError(ErrInvalidArgument, name, "invalid entry name")
	}
	if len(name) > maxNameLen {
		return newError(ErrInvalidArgument, name, "entry name too long")
	}
	if strings.ContainsRune(name, '/') {
		return newError(ErrInvalidArgument, name, "entry name contains a path separator")
	}
	return nil
}
