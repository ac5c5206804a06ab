package fs

import (
	"context"
	"time"
)

// ============================================================================
// Attributes
// ============================================================================

// AccessMode is the permission bit set checked by Access, matching the POSIX
// R_OK/W_OK/X_OK encoding. Zero checks existence only.
type AccessMode uint32

const (
	AccessExecute AccessMode = 1 << iota
	AccessWrite
	AccessRead
)

// statEntry merges an entry record with the store-side payload attributes
// into a stat result. Directory and symlink sizes are synthesized: a
// directory reports zero, a symlink reports its target length.
func (f *Filesystem) statEntry(ctx context.Context, entry *DirEntry) (*Attr, error) {
	attr := &Attr{
		Kind:     entry.Kind,
		Mode:     entry.Mode,
		UID:      entry.UID,
		GID:      entry.GID,
		Atime:    entry.Atime,
		Mtime:    entry.Mtime,
		Ctime:    entry.Ctime,
		ObjectID: entry.ObjectID,
	}

	switch entry.Kind {
	case KindFile:
		oattr, err := f.store.GetAttr(ctx, entry.ObjectID)
		if err != nil {
			return nil, wrapStoreError(err, entry.Name)
		}
		attr.Size = oattr.Size
		attr.Blocks = oattr.BlockCount
	case KindSymlink:
		attr.Size = uint64(len(entry.Target))
	}

	return attr, nil
}

// Stat returns the attributes of the entry at path. A terminal symlink is
// followed or not per policy.
func (f *Filesystem) Stat(ctx context.Context, path string, policy FollowPolicy) (*Attr, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return nil, err
	}
	return f.statEntry(ctx, res.entry)
}

// StatHandle returns the attributes of an open handle.
func (f *Filesystem) StatHandle(ctx context.Context, h *ObjectHandle) (*Attr, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	entry, err := f.loadEntryFor(ctx, h)
	if err != nil {
		return nil, err
	}
	return f.statEntry(ctx, entry)
}

// applySetAttr copies the selected fields onto an entry record and bumps
// ctime. Returns false when nothing was selected.
func applySetAttr(entry *DirEntry, set *SetAttr) bool {
	if set.empty() {
		return false
	}
	if set.Mode != nil {
		entry.Mode = *set.Mode & modeMask
	}
	if set.UID != nil {
		entry.UID = *set.UID
	}
	if set.GID != nil {
		entry.GID = *set.GID
	}
	if set.Atime != nil {
		entry.Atime = *set.Atime
	}
	if set.Mtime != nil {
		entry.Mtime = *set.Mtime
	}
	entry.Ctime = time.Now()
	return true
}

// SetAttrPath updates the selected attributes of the entry at path and
// returns the resulting stat. Fields left nil are unchanged; ctime is bumped
// whenever anything changes.
func (f *Filesystem) SetAttrPath(ctx context.Context, path string, set *SetAttr, policy FollowPolicy) (*Attr, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	if err := f.checkWritable(path); err != nil {
		return nil, err
	}

	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return nil, err
	}

	entry := res.entry.clone()
	if applySetAttr(entry, set) {
		if res.isRootResolution() {
			if err := f.storeEntryFor(ctx, f.root, entry); err != nil {
				return nil, err
			}
		} else if err := f.putEntry(ctx, res.parentID, entry); err != nil {
			return nil, err
		}
	}
	return f.statEntry(ctx, entry)
}

// SetAttrHandle updates the selected attributes through an open handle.
func (f *Filesystem) SetAttrHandle(ctx context.Context, h *ObjectHandle, set *SetAttr) (*Attr, error) {
	if err := f.checkMounted(); err != nil {
		return nil, err
	}
	if err := f.checkWritable(h.name); err != nil {
		return nil, err
	}

	entry, err := f.loadEntryFor(ctx, h)
	if err != nil {
		return nil, err
	}
	if applySetAttr(entry, set) {
		if err := f.storeEntryFor(ctx, h, entry); err != nil {
			return nil, err
		}
	}
	return f.statEntry(ctx, entry)
}

// Access checks whether the mount identity may access the entry at path with
// the given mode. Mode zero checks existence only.
//
// The check is advisory: it evaluates the permission bits against the mount
// identity (owner, group, other classes) without consulting the store.
func (f *Filesystem) Access(ctx context.Context, path string, mode AccessMode, policy FollowPolicy) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return err
	}
	if mode == 0 {
		return nil
	}

	var shift uint
	switch {
	case res.entry.UID == f.uid:
		shift = 6
	case res.entry.GID == f.gid:
		shift = 3
	default:
		shift = 0
	}
	granted := AccessMode(res.entry.Mode>>shift) & 0o7
	if mode&^granted != 0 {
		return newError(ErrPermissionDenied, path, "permission denied")
	}
	return nil
}

// Chmod replaces the permission bits of the entry at path.
func (f *Filesystem) Chmod(ctx context.Context, path string, mode uint32, policy FollowPolicy) error {
	m := mode & modeMask
	_, err := f.SetAttrPath(ctx, path, &SetAttr{Mode: &m}, policy)
	return err
}

// Chown replaces the ownership of the entry at path.
func (f *Filesystem) Chown(ctx context.Context, path string, uid, gid uint32, policy FollowPolicy) error {
	_, err := f.SetAttrPath(ctx, path, &SetAttr{UID: &uid, GID: &gid}, policy)
	return err
}

// Utimens sets the access and modification times of the entry at path.
func (f *Filesystem) Utimens(ctx context.Context, path string, atime, mtime time.Time, policy FollowPolicy) error {
	_, err := f.SetAttrPath(ctx, path, &SetAttr{Atime: &atime, Mtime: &mtime}, policy)
	return err
}
