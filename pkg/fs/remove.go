package fs

import (
	"context"
	"strings"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Removal
// ============================================================================

// Remove deletes the entry at path and returns the identity of the removed
// backing object.
//
// A terminal symlink is never followed: remove unlinks the link itself.
// Removing a non-empty directory fails with ErrDirectoryNotEmpty unless
// force is set, in which case the subtree is deleted bottom-up. When expect
// is non-zero the entry's kind must match it or the call fails with
// ErrWrongType before anything is deleted.
//
// Store objects of removed entries are deleted immediately; an open handle
// on a removed entry keeps its object open but the object is gone for new
// opens.
func (f *Filesystem) Remove(ctx context.Context, path string, force bool, expect EntryKind) (objstore.ObjectID, error) {
	if err := f.checkMounted(); err != nil {
		return objstore.NilObjectID, err
	}
	if err := f.checkWritable(path); err != nil {
		return objstore.NilObjectID, err
	}

	res, err := f.resolveExisting(ctx, path, NoFollowLast)
	if err != nil {
		return objstore.NilObjectID, err
	}
	if res.isRootResolution() {
		return objstore.NilObjectID, newError(ErrInvalidArgument, path, "cannot remove the root")
	}
	if expect != 0 && res.entry.Kind != expect {
		return objstore.NilObjectID, newError(ErrWrongType, path, "entry kind mismatch")
	}

	if res.entry.Kind == KindDirectory {
		empty, err := f.dirIsEmpty(ctx, res.entry.ObjectID)
		if err != nil {
			return objstore.NilObjectID, err
		}
		if !empty {
			if !force {
				return objstore.NilObjectID, newError(ErrDirectoryNotEmpty, path, "directory not empty")
			}
			if err := f.removeChildren(ctx, res.entry.ObjectID); err != nil {
				return objstore.NilObjectID, err
			}
		}
	}

	if err := f.deleteEntry(ctx, res.parentID, res.name); err != nil {
		return objstore.NilObjectID, err
	}
	if err := f.store.DeleteObject(ctx, res.entry.ObjectID); err != nil {
		return objstore.NilObjectID, wrapStoreError(err, path)
	}
	return res.entry.ObjectID, nil
}

// dirIsEmpty reports whether a directory object has no child records.
func (f *Filesystem) dirIsEmpty(ctx context.Context, dirID objstore.ObjectID) (bool, error) {
	keys, err := f.store.ListKeys(ctx, dirID, entryKeyPrefix)
	if err != nil {
		return false, wrapStoreError(err, "")
	}
	return len(keys) == 0, nil
}

// removeChildren deletes every child of a directory, recursing into
// subdirectories before unlinking them so no orphaned subtree survives a
// partial failure.
func (f *Filesystem) removeChildren(ctx context.Context, dirID objstore.ObjectID) error {
	keys, err := f.store.ListKeys(ctx, dirID, entryKeyPrefix)
	if err != nil {
		return wrapStoreError(err, "")
	}

	for _, key := range keys {
		name := strings.TrimPrefix(key, entryKeyPrefix)
		entry, err := f.getEntry(ctx, dirID, name)
		if err != nil {
			if IsCode(err, ErrNotFound) {
				continue
			}
			return err
		}
		if entry.Kind == KindDirectory {
			if err := f.removeChildren(ctx, entry.ObjectID); err != nil {
				return err
			}
		}
		if err := f.deleteEntry(ctx, dirID, name); err != nil {
			return err
		}
		if err := f.store.DeleteObject(ctx, entry.ObjectID); err != nil {
			return wrapStoreError(err, name)
		}
	}
	return nil
}
