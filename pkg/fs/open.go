package fs

import (
	"context"
	"time"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Open Flags
// ============================================================================

// OpenFlags control how Open accesses or creates an entry.
type OpenFlags uint32

const (
	// OpenRead requests read access.
	OpenRead OpenFlags = 1 << iota

	// OpenWrite requests write access.
	OpenWrite

	// OpenCreate creates the entry when the terminal component is missing.
	OpenCreate

	// OpenExclusive, with OpenCreate, fails with ErrAlreadyExists when the
	// entry exists.
	OpenExclusive

	// OpenTruncate discards a file's payload at open.
	OpenTruncate

	// OpenNoFollow opens a terminal symlink itself instead of its target.
	// Intermediate symlinks are still followed.
	OpenNoFollow
)

// modeMask keeps the permission bits; entry kind is never encoded in mode.
const modeMask = 0o7777

// CreateHints carry the optional creation-time parameters of Open.
type CreateHints struct {
	// Class and ChunkSize are opaque placement hints passed through to the
	// store at object creation. Zero means store defaults.
	Class     objstore.ObjectClass
	ChunkSize uint64

	// Target is the literal link target when creating a symlink.
	Target string
}

// ============================================================================
// Open / Create
// ============================================================================

// Open resolves path and returns an open handle for it, optionally creating
// the entry.
//
// kind names the entry kind the caller expects; opening an existing entry of
// a different kind fails with ErrWrongType. With OpenCreate on a missing
// terminal component the entry is created with the given mode and hints;
// creating a symlink requires a non-empty hints.Target.
//
// The returned handle must be closed.
func (f *Filesystem) Open(ctx context.Context, path string, kind EntryKind, flags OpenFlags, mode uint32, hints *CreateHints) (*ObjectHandle, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	if !kind.valid() {
		return nil, newError(ErrInvalidArgument, path, "invalid entry kind")
	}
	if flags&(OpenWrite|OpenCreate|OpenTruncate) != 0 {
		if err := f.checkWritable(path); err != nil {
			return nil, err
		}
	}
	if flags&OpenExclusive != 0 && flags&OpenCreate == 0 {
		return nil, newError(ErrInvalidArgument, path, "exclusive flag requires create")
	}
	if flags&OpenTruncate != 0 && flags&OpenWrite == 0 {
		return nil, newError(ErrInvalidArgument, path, "truncate flag requires write")
	}

	policy := FollowSymlinks
	if flags&OpenNoFollow != 0 {
		policy = NoFollowLast
	}

	res, err := f.resolve(ctx, path, policy)
	if err != nil {
		return nil, err
	}

	if res.isRootResolution() {
		if flags&(OpenCreate|OpenTruncate) != 0 {
			return nil, newError(ErrInvalidArgument, path, "cannot create or truncate the root")
		}
		if kind != KindDirectory {
			return nil, newError(ErrWrongType, path, "entry kind mismatch")
		}
		if err := f.store.OpenObject(ctx, f.rootID); err != nil {
			return nil, wrapStoreError(err, path)
		}
		return f.newHandle(res.entry, objstore.NilObjectID, flags), nil
	}

	if res.entry == nil {
		if flags&OpenCreate == 0 {
			return nil, newError(ErrNotFound, path, "no such file or directory")
		}
		entry, err := f.createEntry(ctx, res.parentID, res.name, kind, mode, hints)
		if err != nil {
			return nil, err
		}
		return f.newHandle(entry, res.parentID, flags), nil
	}

	if flags&(OpenCreate|OpenExclusive) == OpenCreate|OpenExclusive {
		return nil, newError(ErrAlreadyExists, path, "entry already exists")
	}
	if res.entry.Kind != kind {
		return nil, newError(ErrWrongType, path, "entry kind mismatch")
	}

	if err := f.store.OpenObject(ctx, res.entry.ObjectID); err != nil {
		return nil, wrapStoreError(err, path)
	}

	if flags&OpenTruncate != 0 && res.entry.Kind == KindFile {
		if err := f.store.PunchRange(ctx, res.entry.ObjectID, 0, objstore.PunchToEnd); err != nil {
			_ = f.store.CloseObject(ctx, res.entry.ObjectID)
			return nil, wrapStoreError(err, path)
		}
		now := time.Now()
		entry := res.entry.clone()
		entry.Mtime = now
		entry.Ctime = now
		if err := f.putEntry(ctx, res.parentID, entry); err != nil {
			_ = f.store.CloseObject(ctx, res.entry.ObjectID)
			return nil, err
		}
		res.entry = entry
	}

	return f.newHandle(res.entry, res.parentID, flags), nil
}

// createEntry allocates the backing object and writes the entry record. The
// object is left open for the returned handle.
func (f *Filesystem) createEntry(ctx context.Context, parentID objstore.ObjectID, name string, kind EntryKind, mode uint32, hints *CreateHints) (*DirEntry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if hints == nil {
		hints = &CreateHints{}
	}
	if kind == KindSymlink && hints.Target == "" {
		return nil, newError(ErrInvalidArgument, name, "symlink creation requires a target")
	}
	if len(hints.Target) > maxPathLen {
		return nil, newError(ErrInvalidArgument, name, "symlink target too long")
	}
	if kind != KindSymlink && hints.Target != "" {
		return nil, newError(ErrInvalidArgument, name, "target is only valid for symlinks")
	}

	chunkSize := hints.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}

	id, err := f.store.CreateObject(ctx, hints.Class, chunkSize)
	if err != nil {
		return nil, wrapStoreError(err, name)
	}

	now := time.Now()
	entry := &DirEntry{
		Name:      name,
		Kind:      kind,
		Mode:      mode & modeMask,
		UID:       f.uid,
		GID:       f.gid,
		ObjectID:  id,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
		Class:     hints.Class,
		ChunkSize: chunkSize,
		Target:    hints.Target,
	}

	if err := f.putEntry(ctx, parentID, entry); err != nil {
		_ = f.store.CloseObject(ctx, id)
		_ = f.store.DeleteObject(ctx, id)
		return nil, err
	}
	return entry, nil
}

// ============================================================================
// Mkdir / Mknod
// ============================================================================

// Mkdir creates a directory. The parent must already exist.
func (f *Filesystem) Mkdir(ctx context.Context, path string, mode uint32, class objstore.ObjectClass) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(path); err != nil {
		return err
	}

	res, err := f.resolve(ctx, path, FollowSymlinks)
	if err != nil {
		return err
	}
	if res.isRootResolution() || res.entry != nil {
		return newError(ErrAlreadyExists, path, "entry already exists")
	}

	entry, err := f.createEntry(ctx, res.parentID, res.name, KindDirectory, mode, &CreateHints{Class: class})
	if err != nil {
		return err
	}
	if err := f.store.CloseObject(ctx, entry.ObjectID); err != nil {
		return wrapStoreError(err, path)
	}
	return nil
}

// Mknod creates a regular file without returning a handle.
func (f *Filesystem) Mknod(ctx context.Context, path string, mode uint32, hints *CreateHints) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(path); err != nil {
		return err
	}

	res, err := f.resolve(ctx, path, FollowSymlinks)
	if err != nil {
		return err
	}
	if res.isRootResolution() || res.entry != nil {
		return newError(ErrAlreadyExists, path, "entry already exists")
	}

	entry, err := f.createEntry(ctx, res.parentID, res.name, KindFile, mode, hints)
	if err != nil {
		return err
	}
	if err := f.store.CloseObject(ctx, entry.ObjectID); err != nil {
		return wrapStoreError(err, path)
	}
	return nil
}

// Lookup resolves a path and returns its entry record without opening a
// handle.
func (f *Filesystem) Lookup(ctx context.Context, path string, policy FollowPolicy) (*DirEntry, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return nil, err
	}
	return res.entry.clone(), nil
}
