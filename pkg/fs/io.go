package fs

import (
	"context"
	"time"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// File I/O
// ============================================================================

// Read copies payload bytes at offset into buf and returns the number of
// bytes read. Reads at or past end-of-file return zero and no error; short
// reads happen only at end-of-file.
func (f *Filesystem) Read(ctx context.Context, h *ObjectHandle, offset uint64, buf []byte) (int, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}
	if h.kind != KindFile {
		return 0, newError(ErrInvalidOperation, h.name, "handle is not a file")
	}
	if h.flags&OpenRead == 0 {
		return 0, newError(ErrInvalidOperation, h.name, "handle not open for reading")
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := f.store.ReadAt(ctx, h.id, offset, buf)
	if err != nil {
		return 0, wrapStoreError(err, h.name)
	}
	return n, nil
}

// Write copies buf into the payload at offset and returns the number of
// bytes written. Writing past end-of-file extends the file; the gap reads
// back as zeros. A successful write bumps mtime and ctime.
func (f *Filesystem) Write(ctx context.Context, h *ObjectHandle, offset uint64, buf []byte) (int, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}
	if err := f.checkWritable(h.name); err != nil {
		return 0, err
	}
	if h.kind != KindFile {
		return 0, newError(ErrInvalidOperation, h.name, "handle is not a file")
	}
	if h.flags&OpenWrite == 0 {
		return 0, newError(ErrInvalidOperation, h.name, "handle not open for writing")
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := f.store.WriteAt(ctx, h.id, offset, buf)
	if err != nil {
		return 0, wrapStoreError(err, h.name)
	}
	if err := f.touchModified(ctx, h); err != nil {
		return 0, err
	}
	return n, nil
}

// Punch deallocates the payload range [offset, offset+length).
//
// Punching with length objstore.PunchToEnd, or with a range reaching
// end-of-file, truncates the file at offset. Punching from an offset past
// end-of-file extends the file to that offset. An interior punch zeroes the
// range without changing the size. A successful punch bumps mtime and
// ctime.
func (f *Filesystem) Punch(ctx context.Context, h *ObjectHandle, offset, length uint64) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(h.name); err != nil {
		return err
	}
	if h.kind != KindFile {
		return newError(ErrInvalidOperation, h.name, "handle is not a file")
	}
	if h.flags&OpenWrite == 0 {
		return newError(ErrInvalidOperation, h.name, "handle not open for writing")
	}

	if err := f.store.PunchRange(ctx, h.id, offset, length); err != nil {
		return wrapStoreError(err, h.name)
	}
	return f.touchModified(ctx, h)
}

// PunchPath punches without an open handle: resolve, punch, release.
func (f *Filesystem) PunchPath(ctx context.Context, path string, offset, length uint64) error {
	h, err := f.Open(ctx, path, KindFile, OpenWrite, 0, nil)
	if err != nil {
		return err
	}
	punchErr := f.Punch(ctx, h, offset, length)
	closeErr := h.Close(ctx)
	if punchErr != nil {
		return punchErr
	}
	return closeErr
}

// touchModified bumps mtime and ctime on the entry behind a handle after a
// payload mutation.
func (f *Filesystem) touchModified(ctx context.Context, h *ObjectHandle) error {
	entry, err := f.loadEntryFor(ctx, h)
	if err != nil {
		// The entry may have been unlinked while the handle stayed open;
		// the payload mutation itself succeeded.
		if IsCode(err, ErrNotFound) {
			return nil
		}
		return err
	}
	now := time.Now()
	entry.Mtime = now
	entry.Ctime = now
	return f.storeEntryFor(ctx, h, entry)
}

// Size returns the current payload size of a file handle.
func (f *Filesystem) Size(ctx context.Context, h *ObjectHandle) (uint64, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}
	if h.kind != KindFile {
		return 0, newError(ErrInvalidOperation, h.name, "handle is not a file")
	}
	attr, err := f.store.GetAttr(ctx, h.id)
	if err != nil {
		return 0, wrapStoreError(err, h.name)
	}
	return attr.Size, nil
}

// Truncate sets the payload size of a file handle to size, extending with
// zeros or discarding the tail.
func (f *Filesystem) Truncate(ctx context.Context, h *ObjectHandle, size uint64) error {
	return f.Punch(ctx, h, size, objstore.PunchToEnd)
}
