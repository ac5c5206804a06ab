package fs

import (
	"context"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// Extended Attributes
// ============================================================================

// XattrFlags restrict how SetXattr treats an existing attribute.
type XattrFlags uint32

const (
	// XattrCreate fails with ErrAlreadyExists when the attribute exists.
	XattrCreate XattrFlags = 1 << iota

	// XattrReplace fails with ErrNotFound when the attribute is missing.
	XattrReplace
)

// maxXattrName bounds an extended attribute name.
const maxXattrName = 255

// validXattrName rejects names that would collide in the keyspace.
func validXattrName(name string) error {
	if name == "" || len(name) > maxXattrName || strings.ContainsRune(name, '/') {
		return newError(ErrInvalidArgument, name, "invalid extended attribute name")
	}
	return nil
}

// SetXattr sets an extended attribute on the entry at path.
//
// Attributes live in the keyspace of the entry's own backing object, so they
// travel with the object and vanish with it on removal.
func (f *Filesystem) SetXattr(ctx context.Context, path, name string, value []byte, flags XattrFlags, policy FollowPolicy) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(path); err != nil {
		return err
	}
	if err := validXattrName(name); err != nil {
		return err
	}
	if flags&(XattrCreate|XattrReplace) == XattrCreate|XattrReplace {
		return newError(ErrInvalidArgument, path, "create and replace flags are exclusive")
	}

	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return err
	}

	if flags != 0 {
		_, getErr := f.store.GetValue(ctx, res.entry.ObjectID, xattrKey(name))
		exists := getErr == nil
		if !exists && !IsCode(wrapStoreError(getErr, path), ErrNotFound) {
			return wrapStoreError(getErr, path)
		}
		if flags&XattrCreate != 0 && exists {
			return newError(ErrAlreadyExists, path, "extended attribute already exists")
		}
		if flags&XattrReplace != 0 && !exists {
			return newError(ErrNotFound, path, "no such extended attribute")
		}
	}

	if err := f.store.PutValue(ctx, res.entry.ObjectID, xattrKey(name), value); err != nil {
		return wrapStoreError(err, path)
	}
	return f.bumpCtime(ctx, res)
}

// GetXattr copies the value of an extended attribute into buf and returns
// the number of bytes copied.
//
// A buffer smaller than the value fails with ErrRangeTooSmall carrying the
// required size; nothing is copied in that case.
func (f *Filesystem) GetXattr(ctx context.Context, path, name string, buf []byte, policy FollowPolicy) (int, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}
	if err := validXattrName(name); err != nil {
		return 0, err
	}

	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return 0, err
	}

	value, err := f.store.GetValue(ctx, res.entry.ObjectID, xattrKey(name))
	if err != nil {
		return 0, wrapStoreError(err, path)
	}
	if len(buf) < len(value) {
		return 0, &FSError{
			Code:     ErrRangeTooSmall,
			Message:  "buffer too small for extended attribute value",
			Path:     path,
			Required: len(value),
		}
	}
	copy(buf, value)
	return len(value), nil
}

// RemoveXattr deletes an extended attribute. A missing attribute is
// ErrNotFound.
func (f *Filesystem) RemoveXattr(ctx context.Context, path, name string, policy FollowPolicy) error {
	if err := f.checkMounted(); err != nil {
		return err
	}
	if err := f.checkWritable(path); err != nil {
		return err
	}
	if err := validXattrName(name); err != nil {
		return err
	}

	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return err
	}

	if _, err := f.store.GetValue(ctx, res.entry.ObjectID, xattrKey(name)); err != nil {
		return wrapStoreError(err, path)
	}
	if err := f.store.DeleteKey(ctx, res.entry.ObjectID, xattrKey(name)); err != nil {
		return wrapStoreError(err, path)
	}
	return f.bumpCtime(ctx, res)
}

// ListXattr writes the attribute names of the entry at path into buf as a
// sequence of NUL-terminated strings and returns the byte count written.
//
// A buffer smaller than the full list fails with ErrRangeTooSmall carrying
// the required size. A nil buf is the conventional way to size the list.
func (f *Filesystem) ListXattr(ctx context.Context, path string, buf []byte, policy FollowPolicy) (int, error) {
	if err := f.checkMounted(); err != nil {
		return 0, err
	}

	res, err := f.resolveExisting(ctx, path, policy)
	if err != nil {
		return 0, err
	}

	keys, err := f.store.ListKeys(ctx, res.entry.ObjectID, xattrKeyPrefix)
	if err != nil {
		return 0, wrapStoreError(err, path)
	}

	names := make([]string, 0, len(keys))
	total := 0
	for _, key := range keys {
		name := strings.TrimPrefix(key, xattrKeyPrefix)
		names = append(names, name)
		total += len(name) + 1
	}
	sort.Strings(names)

	if len(buf) < total {
		return 0, &FSError{
			Code:     ErrRangeTooSmall,
			Message:  "buffer too small for extended attribute list",
			Path:     path,
			Required: total,
		}
	}

	off := 0
	for _, name := range names {
		off += copy(buf[off:], name)
		buf[off] = 0
		off++
	}
	return total, nil
}

// bumpCtime records a metadata change on the entry a resolution landed on.
func (f *Filesystem) bumpCtime(ctx context.Context, res *resolution) error {
	entry := res.entry.clone()
	entry.Ctime = time.Now()
	if res.isRootResolution() {
		return f.storeEntryFor(ctx, f.root, entry)
	}
	return f.putEntry(ctx, res.parentID, entry)
}
