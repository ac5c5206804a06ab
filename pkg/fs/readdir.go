package fs

import (
	"context"
	"sort"
	"strings"
)

// ============================================================================
// Directory Iteration
// ============================================================================

// Dir is an iterator over the children of an open directory handle.
//
// The child name list is captured when the iterator is created; entry
// records are fetched lazily as the caller advances, so a child removed
// mid-iteration is skipped rather than reported stale. Names come back in
// lexical order.
//
// A Dir is not safe for concurrent use.
type Dir struct {
	fs    *Filesystem
	dirID *ObjectHandle
	names []string
	pos   int
}

// OpenDir starts an iteration over the directory at path. The returned Dir
// holds its own handle and must be closed.
func (f *Filesystem) OpenDir(ctx context.Context, path string) (*Dir, error) {
	h, err := f.Open(ctx, path, KindDirectory, OpenRead, 0, nil)
	if err != nil {
		return nil, err
	}

	d, err := f.dirFromHandle(ctx, h)
	if err != nil {
		_ = h.Close(ctx)
		return nil, err
	}
	return d, nil
}

// IterateHandle starts an iteration over an already-open directory handle.
// The iterator shares the handle: closing the Dir releases one reference.
func (f *Filesystem) IterateHandle(ctx context.Context, h *ObjectHandle) (*Dir, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	if h.kind != KindDirectory {
		return nil, newError(ErrInvalidOperation, h.name, "not a directory handle")
	}
	dup, err := h.Dup()
	if err != nil {
		return nil, err
	}
	return f.dirFromHandle(ctx, dup)
}

// dirFromHandle snapshots the child name list. Takes ownership of h.
func (f *Filesystem) dirFromHandle(ctx context.Context, h *ObjectHandle) (*Dir, error) {
	keys, err := f.store.ListKeys(ctx, h.id, entryKeyPrefix)
	if err != nil {
		return nil, wrapStoreError(err, h.name)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, entryKeyPrefix))
	}
	sort.Strings(names)

	return &Dir{fs: f, dirID: h, names: names}, nil
}

// Next returns the next child entry, or (nil, nil) when the iteration is
// done. Children removed since the iterator was created are skipped.
func (d *Dir) Next(ctx context.Context) (*DirEntry, error) {
	for d.pos < len(d.names) {
		name := d.names[d.pos]
		d.pos++

		entry, err := d.fs.getEntry(ctx, d.dirID.id, name)
		if err != nil {
			if IsCode(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		return entry, nil
	}
	return nil, nil
}

// Rewind restarts the iteration from the first child. The name snapshot is
// not refreshed.
func (d *Dir) Rewind() {
	d.pos = 0
}

// Remaining reports how many names are left to visit.
func (d *Dir) Remaining() int {
	return len(d.names) - d.pos
}

// Close releases the iterator's handle reference.
func (d *Dir) Close(ctx context.Context) error {
	return d.dirID.Close(ctx)
}
