// Package sys is the high-level entry point for the filesystem: a mount
// registry facade over the fs package that adds per-operation metrics and
// the buffer-sizing conventions callers coming from syscall-shaped code
// expect.
//
// All operations are path-based unless they take an explicit handle. Paths
// are absolute within the mount. Each operation is recorded against the
// optional metrics recorder; pass nil metrics for zero overhead.
package sys

import (
	"context"
	"time"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/fs"
	"github.com/marmos91/objfs/pkg/metrics"
	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Mounting
// ============================================================================

// SysFlags tune the facade's caching and locking behavior.
type SysFlags uint32

const (
	// NoCache disables the lookup cache.
	NoCache SysFlags = 1 << iota

	// NoLock skips internal locking; the caller promises single-threaded
	// use.
	NoLock
)

// MountOptions configure a mount through the facade.
type MountOptions struct {
	// ReadOnly rejects every mutating operation.
	ReadOnly bool

	// Flags tune caching and locking.
	Flags SysFlags

	// UID and GID are the identity recorded on new entries and checked by
	// Access.
	UID uint32
	GID uint32

	// Metrics is the optional operation recorder. Nil disables collection.
	Metrics metrics.FSMetrics
}

// FS is one mounted filesystem with operation accounting.
type FS struct {
	fs *fs.Filesystem
	m  metrics.FSMetrics
}

// mountFlags translates facade options to mount flags.
func (o *MountOptions) mountFlags() fs.MountFlags {
	var flags fs.MountFlags
	if o.ReadOnly {
		flags |= fs.MountReadOnly
	}
	if o.Flags&NoCache != 0 {
		flags |= fs.MountNoCache
	}
	if o.Flags&NoLock != 0 {
		flags |= fs.MountNoLock
	}
	return flags
}

// Mount opens the namespace rooted at rootID on a connected store.
func Mount(ctx context.Context, store objstore.Store, conn objstore.Connection, rootID objstore.ObjectID, opts MountOptions) (*FS, error) {
	if opts.Flags&^(NoCache|NoLock) != 0 {
		return nil, &fs.FSError{Code: fs.ErrInvalidArgument, Message: "unknown mount flags"}
	}

	mounted, err := fs.Mount(ctx, store, conn, rootID, fs.Options{
		Flags: opts.mountFlags(),
		UID:   opts.UID,
		GID:   opts.GID,
	})
	if err != nil {
		return nil, err
	}
	return &FS{fs: mounted, m: opts.Metrics}, nil
}

// Import mounts the namespace described by a blob produced by Export.
func Import(ctx context.Context, store objstore.Store, conn objstore.Connection, blob []byte, opts MountOptions) (*FS, error) {
	mounted, err := fs.Import(ctx, store, conn, blob, fs.Options{
		Flags: opts.mountFlags(),
		UID:   opts.UID,
		GID:   opts.GID,
	})
	if err != nil {
		return nil, err
	}
	return &FS{fs: mounted, m: opts.Metrics}, nil
}

// Export serializes the mount into a blob for Import in another process.
func (s *FS) Export() ([]byte, error) {
	return s.fs.Export()
}

// Umount releases the mount. Open handles are leaked with a warning.
func (s *FS) Umount(ctx context.Context) error {
	s.flushCacheStats()
	return s.fs.Umount(ctx)
}

// Filesystem exposes the underlying filesystem for callers that need the
// lower-level API.
func (s *FS) Filesystem() *fs.Filesystem {
	return s.fs
}

// flushCacheStats pushes lookup cache counters to the recorder.
func (s *FS) flushCacheStats() {
	hits, misses, size := s.fs.CacheStats()
	metrics.RecordCacheStats(s.m, hits, misses, size)
}

// record closes out one operation against the metrics recorder.
func (s *FS) record(op string, start time.Time, err error) {
	label := ""
	if err != nil {
		label = fs.CodeOf(err).String()
	}
	metrics.RecordOperation(s.m, op, start, label)
}

// policyOf maps the conventional follow flag to a resolver policy.
func policyOf(followLinks bool) fs.FollowPolicy {
	if followLinks {
		return fs.FollowSymlinks
	}
	return fs.NoFollowLast
}

// ============================================================================
// Metadata Operations
// ============================================================================

// Access checks whether the mount identity may access path with the given
// permission mode. Mode zero checks existence only.
func (s *FS) Access(ctx context.Context, path string, mode fs.AccessMode, followLinks bool) error {
	start := time.Now()
	err := s.fs.Access(ctx, path, mode, policyOf(followLinks))
	s.record("access", start, err)
	return err
}

// Chmod replaces the permission bits of the entry at path.
func (s *FS) Chmod(ctx context.Context, path string, mode uint32, followLinks bool) error {
	start := time.Now()
	err := s.fs.Chmod(ctx, path, mode, policyOf(followLinks))
	s.record("chmod", start, err)
	return err
}

// Chown replaces the ownership of the entry at path.
func (s *FS) Chown(ctx context.Context, path string, uid, gid uint32, followLinks bool) error {
	start := time.Now()
	err := s.fs.Chown(ctx, path, uid, gid, policyOf(followLinks))
	s.record("chown", start, err)
	return err
}

// Utimens sets access and modification times of the entry at path.
func (s *FS) Utimens(ctx context.Context, path string, atime, mtime time.Time, followLinks bool) error {
	start := time.Now()
	err := s.fs.Utimens(ctx, path, atime, mtime, policyOf(followLinks))
	s.record("utimens", start, err)
	return err
}

// Stat returns the attributes of the entry at path.
func (s *FS) Stat(ctx context.Context, path string, followLinks bool) (*fs.Attr, error) {
	start := time.Now()
	attr, err := s.fs.Stat(ctx, path, policyOf(followLinks))
	s.record("stat", start, err)
	return attr, err
}

// Setattr applies the selected attribute changes to the entry at path and
// returns the resulting attributes.
func (s *FS) Setattr(ctx context.Context, path string, set *fs.SetAttr, followLinks bool) (*fs.Attr, error) {
	start := time.Now()
	attr, err := s.fs.SetAttrPath(ctx, path, set, policyOf(followLinks))
	s.record("setattr", start, err)
	return attr, err
}

// ============================================================================
// Namespace Operations
// ============================================================================

// Mknod creates a regular file at path.
func (s *FS) Mknod(ctx context.Context, path string, mode uint32, hints *fs.CreateHints) error {
	start := time.Now()
	err := s.fs.Mknod(ctx, path, mode, hints)
	s.record("mknod", start, err)
	return err
}

// Mkdir creates a directory at path.
func (s *FS) Mkdir(ctx context.Context, path string, mode uint32, class objstore.ObjectClass) error {
	start := time.Now()
	err := s.fs.Mkdir(ctx, path, mode, class)
	s.record("mkdir", start, err)
	return err
}

// Remove deletes the entry at path and returns the removed object identity.
// A non-empty directory needs force; a terminal symlink is never followed.
func (s *FS) Remove(ctx context.Context, path string, force bool) (objstore.ObjectID, error) {
	start := time.Now()
	id, err := s.fs.Remove(ctx, path, force, 0)
	s.record("remove", start, err)
	return id, err
}

// RemoveType deletes the entry at path only if its kind matches expect.
func (s *FS) RemoveType(ctx context.Context, path string, force bool, expect fs.EntryKind) (objstore.ObjectID, error) {
	start := time.Now()
	id, err := s.fs.Remove(ctx, path, force, expect)
	s.record("remove", start, err)
	return id, err
}

// Symlink creates a symbolic link at path carrying the literal target.
func (s *FS) Symlink(ctx context.Context, target, path string) error {
	start := time.Now()
	err := s.fs.Symlink(ctx, target, path)
	s.record("symlink", start, err)
	return err
}

// Readlink copies the link target into buf and returns the full target
// length. A short buffer truncates without error; callers compare the
// return value against len(buf) and retry with a bigger buffer.
func (s *FS) Readlink(ctx context.Context, path string, buf []byte) (int, error) {
	start := time.Now()
	n, err := s.fs.Readlink(ctx, path, buf)
	s.record("readlink", start, err)
	return n, err
}

// ============================================================================
// Extended Attributes
// ============================================================================

// SetXattr sets an extended attribute on the entry at path.
func (s *FS) SetXattr(ctx context.Context, path, name string, value []byte, flags fs.XattrFlags, followLinks bool) error {
	start := time.Now()
	err := s.fs.SetXattr(ctx, path, name, value, flags, policyOf(followLinks))
	s.record("setxattr", start, err)
	return err
}

// GetXattr copies the attribute value into buf and returns the byte count.
// When buf is too small the return value is -1 and the error carries the
// required size (fs.RequiredSize).
func (s *FS) GetXattr(ctx context.Context, path, name string, buf []byte, followLinks bool) (int, error) {
	start := time.Now()
	n, err := s.fs.GetXattr(ctx, path, name, buf, policyOf(followLinks))
	s.record("getxattr", start, err)
	if fs.IsCode(err, fs.ErrRangeTooSmall) {
		return -1, err
	}
	return n, err
}

// RemoveXattr deletes an extended attribute from the entry at path.
func (s *FS) RemoveXattr(ctx context.Context, path, name string, followLinks bool) error {
	start := time.Now()
	err := s.fs.RemoveXattr(ctx, path, name, policyOf(followLinks))
	s.record("removexattr", start, err)
	return err
}

// ListXattr writes the NUL-separated attribute names into buf and returns
// the byte count. When buf is too small the return value is -1 and the
// error carries the required size.
func (s *FS) ListXattr(ctx context.Context, path string, buf []byte, followLinks bool) (int, error) {
	start := time.Now()
	n, err := s.fs.ListXattr(ctx, path, buf, policyOf(followLinks))
	s.record("listxattr", start, err)
	if fs.IsCode(err, fs.ErrRangeTooSmall) {
		return -1, err
	}
	return n, err
}

// ============================================================================
// File I/O
// ============================================================================

// Open resolves path and returns an open handle, optionally creating the
// entry. The handle must be closed with Close.
func (s *FS) Open(ctx context.Context, path string, kind fs.EntryKind, flags fs.OpenFlags, mode uint32, hints *fs.CreateHints) (*fs.ObjectHandle, error) {
	start := time.Now()
	h, err := s.fs.Open(ctx, path, kind, flags, mode, hints)
	s.record("open", start, err)
	metrics.SetOpenHandles(s.m, s.fs.OpenHandles())
	return h, err
}

// Close releases a handle obtained from Open or Opendir.
func (s *FS) Close(ctx context.Context, h *fs.ObjectHandle) error {
	start := time.Now()
	err := h.Close(ctx)
	s.record("close", start, err)
	metrics.SetOpenHandles(s.m, s.fs.OpenHandles())
	return err
}

// Read copies payload bytes at offset into buf and returns the byte count.
// Reads at or past end-of-file return zero and no error.
func (s *FS) Read(ctx context.Context, h *fs.ObjectHandle, offset uint64, buf []byte) (int, error) {
	start := time.Now()
	n, err := s.fs.Read(ctx, h, offset, buf)
	s.record("read", start, err)
	if err == nil {
		metrics.RecordIOBytes(s.m, "read", n)
	}
	return n, err
}

// Write copies buf into the payload at offset and returns the byte count.
func (s *FS) Write(ctx context.Context, h *fs.ObjectHandle, offset uint64, buf []byte) (int, error) {
	start := time.Now()
	n, err := s.fs.Write(ctx, h, offset, buf)
	s.record("write", start, err)
	if err == nil {
		metrics.RecordIOBytes(s.m, "write", n)
	}
	return n, err
}

// Punch deallocates the payload range [offset, offset+length) of the file
// at path. Length objstore.PunchToEnd truncates at offset.
func (s *FS) Punch(ctx context.Context, path string, offset, length uint64) error {
	start := time.Now()
	err := s.fs.PunchPath(ctx, path, offset, length)
	s.record("punch", start, err)
	return err
}

// OPunch deallocates a payload range through an open handle.
func (s *FS) OPunch(ctx context.Context, h *fs.ObjectHandle, offset, length uint64) error {
	start := time.Now()
	err := s.fs.Punch(ctx, h, offset, length)
	s.record("punch", start, err)
	return err
}

// ============================================================================
// Directory Iteration
// ============================================================================

// Opendir starts an iteration over the directory at path.
func (s *FS) Opendir(ctx context.Context, path string) (*fs.Dir, error) {
	start := time.Now()
	d, err := s.fs.OpenDir(ctx, path)
	s.record("opendir", start, err)
	metrics.SetOpenHandles(s.m, s.fs.OpenHandles())
	return d, err
}

// Readdir returns the next directory entry, or (nil, nil) at the end of the
// iteration.
func (s *FS) Readdir(ctx context.Context, d *fs.Dir) (*fs.DirEntry, error) {
	start := time.Now()
	entry, err := d.Next(ctx)
	s.record("readdir", start, err)
	return entry, err
}

// Closedir releases a directory iterator.
func (s *FS) Closedir(ctx context.Context, d *fs.Dir) error {
	start := time.Now()
	err := d.Close(ctx)
	s.record("closedir", start, err)
	metrics.SetOpenHandles(s.m, s.fs.OpenHandles())
	return err
}

// ============================================================================
// Diagnostics
// ============================================================================

// LogCacheStats logs and publishes the lookup cache counters.
func (s *FS) LogCacheStats() {
	hits, misses, size := s.fs.CacheStats()
	metrics.RecordCacheStats(s.m, hits, misses, size)
	logger.Debug("Lookup cache: hits=%d misses=%d entries=%d", hits, misses, size)
}
