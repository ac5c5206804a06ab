package fs

import (
	"context"
)

// ============================================================================
// Symlinks
// ============================================================================

// Symlink creates a symbolic link at path carrying the literal target. The
// target is not validated or resolved; dangling links are legal.
func (f *Filesystem) Symlink(ctx context.Context, target, path string) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(path); err != nil {
		return err
	}
	if target == "" {
		return newError(ErrInvalidArgument, path, "empty symlink target")
	}
	if len(target) > maxPathLen {
		return newError(ErrInvalidArgument, path, "symlink target too long")
	}

	res, err := f.resolve(ctx, path, NoFollowLast)
	if err != nil {
		return err
	}
	if res.isRootResolution() || res.entry != nil {
		return newError(ErrAlreadyExists, path, "entry already exists")
	}

	entry, err := f.createEntry(ctx, res.parentID, res.name, KindSymlink, 0o777, &CreateHints{Target: target})
	if err != nil {
		return err
	}
	if err := f.store.CloseObject(ctx, entry.ObjectID); err != nil {
		return wrapStoreError(err, path)
	}
	return nil
}

// Readlink copies the link target at path into buf and returns the full
// target size.
//
// A short buffer is not an error: the target is truncated to fit and the
// returned size still reports the full length, so callers size a retry from
// the return value. A nil buf reads nothing and just reports the size.
func (f *Filesystem) Readlink(ctx context.Context, path string, buf []byte) (int, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}

	res, err := f.resolveExisting(ctx, path, NoFollowLast)
	if err != nil {
		return 0, err
	}
	if res.entry.Kind != KindSymlink {
		return 0, newError(ErrInvalidArgument, path, "not a symlink")
	}

	copy(buf, res.entry.Target)
	return len(res.entry.Target), nil
}
