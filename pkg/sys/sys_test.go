package sys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objfs/pkg/fs"
	"github.com/marmos91/objfs/pkg/objstore"
	"github.com/marmos91/objfs/pkg/objstore/memory"
)

var testConn = objstore.Connection{Pool: "test-pool", Container: "test-cont"}

// opRecorder captures metric calls for assertions.
type opRecorder struct {
	ops       []string
	errors    []string
	ioBytes   map[string]int
	cacheHits uint64
}

func newOpRecorder() *opRecorder {
	return &opRecorder{ioBytes: make(map[string]int)}
}

func (r *opRecorder) RecordOperation(op string, _ time.Duration, errorCode string) {
	r.ops = append(r.ops, op)
	r.errors = append(r.errors, errorCode)
}

func (r *opRecorder) RecordIOBytes(direction string, bytes int) {
	r.ioBytes[direction] += bytes
}

func (r *opRecorder) SetOpenHandles(int64) {}

func (r *opRecorder) RecordCacheStats(hits, _ uint64, _ int) {
	r.cacheHits = hits
}

func newTestSys(t *testing.T, opts MountOptions) (*FS, objstore.Store) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewMemoryStore(testConn)
	rootID, err := fs.Format(ctx, store, 0o755)
	require.NoError(t, err)

	mounted, err := Mount(ctx, store, testConn, rootID, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mounted.Umount(ctx)
		_ = store.Close()
	})
	return mounted, store
}

func writeFile(t *testing.T, s *FS, path, content string) {
	t.Helper()
	ctx := context.Background()

	h, err := s.Open(ctx, path, fs.KindFile, fs.OpenWrite|fs.OpenCreate, 0o644, nil)
	require.NoError(t, err)
	_, err = s.Write(ctx, h, 0, []byte(content))
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, h))
}

// ============================================================================
// Mount Tests
// ============================================================================

func TestSysMount(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownFlagsRejected", func(t *testing.T) {
		store := memory.NewMemoryStore(testConn)
		defer store.Close()
		rootID, err := fs.Format(ctx, store, 0o755)
		require.NoError(t, err)

		_, err = Mount(ctx, store, testConn, rootID, MountOptions{Flags: SysFlags(1 << 10)})
		require.Error(t, err)
		assert.True(t, fs.IsCode(err, fs.ErrInvalidArgument))
	})

	t.Run("ReadOnlyRejectsMutation", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{ReadOnly: true})

		err := s.Mkdir(context.Background(), "/dir", 0o755, 0)
		require.Error(t, err)
		assert.True(t, fs.IsCode(err, fs.ErrInvalidOperation))
	})

	t.Run("NoCacheMountWorks", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{Flags: NoCache})

		writeFile(t, s, "/file", "data")
		attr, err := s.Stat(context.Background(), "/file", true)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), attr.Size)
	})
}

// ============================================================================
// Namespace Tests
// ============================================================================

func TestSysNamespace(t *testing.T) {
	ctx := context.Background()

	t.Run("MkdirMknodStatRemove", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{UID: 1000, GID: 1000})

		require.NoError(t, s.Mkdir(ctx, "/dir", 0o755, 0))
		require.NoError(t, s.Mknod(ctx, "/dir/node", 0o600, nil))

		attr, err := s.Stat(ctx, "/dir/node", true)
		require.NoError(t, err)
		assert.Equal(t, fs.KindFile, attr.Kind)
		assert.Equal(t, uint32(1000), attr.UID)

		removed, err := s.Remove(ctx, "/dir/node", false)
		require.NoError(t, err)
		assert.Equal(t, attr.ObjectID, removed)
	})

	t.Run("RemoveTypeMismatch", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		writeFile(t, s, "/file", "x")

		_, err := s.RemoveType(ctx, "/file", false, fs.KindDirectory)
		require.Error(t, err)
		assert.True(t, fs.IsCode(err, fs.ErrWrongType))

		_, err = s.Stat(ctx, "/file", true)
		require.NoError(t, err)
	})

	t.Run("SetattrAndAccess", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{UID: 1000, GID: 1000})
		writeFile(t, s, "/file", "x")

		mode := uint32(0o400)
		attr, err := s.Setattr(ctx, "/file", &fs.SetAttr{Mode: &mode}, true)
		require.NoError(t, err)
		assert.Equal(t, uint32(0o400), attr.Mode)

		require.NoError(t, s.Access(ctx, "/file", fs.AccessRead, true))
		err = s.Access(ctx, "/file", fs.AccessWrite, true)
		assert.True(t, fs.IsCode(err, fs.ErrPermissionDenied))
	})
}

// ============================================================================
// Symlink Tests
// ============================================================================

func TestSysSymlink(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadlinkTruncatesWithoutError", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		require.NoError(t, s.Symlink(ctx, "/a/long/target", "/link"))

		buf := make([]byte, 4)
		n, err := s.Readlink(ctx, "/link", buf)
		require.NoError(t, err)
		assert.Equal(t, len("/a/long/target"), n)
		assert.Equal(t, "/a/l", string(buf))
	})

	t.Run("NilBufferReportsSize", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		require.NoError(t, s.Symlink(ctx, "/target", "/link"))

		n, err := s.Readlink(ctx, "/link", nil)
		require.NoError(t, err)
		assert.Equal(t, len("/target"), n)
	})
}

// ============================================================================
// Xattr Sizing Tests
// ============================================================================

func TestSysXattr(t *testing.T) {
	ctx := context.Background()

	t.Run("GetXattrShortBufferReturnsMinusOne", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		writeFile(t, s, "/file", "x")
		require.NoError(t, s.SetXattr(ctx, "/file", "user.tag", []byte("0123456789"), 0, true))

		buf := make([]byte, 4)
		n, err := s.GetXattr(ctx, "/file", "user.tag", buf, true)
		require.Error(t, err)
		assert.Equal(t, -1, n)
		assert.Equal(t, 10, fs.RequiredSize(err))

		full := make([]byte, fs.RequiredSize(err))
		n, err = s.GetXattr(ctx, "/file", "user.tag", full, true)
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(full[:n]))
	})

	t.Run("ListXattrSizing", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		writeFile(t, s, "/file", "x")
		require.NoError(t, s.SetXattr(ctx, "/file", "user.a", []byte("1"), 0, true))
		require.NoError(t, s.SetXattr(ctx, "/file", "user.b", []byte("2"), 0, true))

		n, err := s.ListXattr(ctx, "/file", nil, true)
		require.Error(t, err)
		assert.Equal(t, -1, n)

		buf := make([]byte, fs.RequiredSize(err))
		n, err = s.ListXattr(ctx, "/file", buf, true)
		require.NoError(t, err)
		assert.Equal(t, "user.a\x00user.b\x00", string(buf[:n]))
	})
}

// ============================================================================
// I/O Tests
// ============================================================================

func TestSysIO(t *testing.T) {
	ctx := context.Background()

	t.Run("PunchByPath", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		writeFile(t, s, "/file", "0123456789")

		require.NoError(t, s.Punch(ctx, "/file", 4, objstore.PunchToEnd))

		attr, err := s.Stat(ctx, "/file", true)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), attr.Size)
	})

	t.Run("PunchThroughHandle", func(t *testing.T) {
		s, _ := newTestSys(t, MountOptions{})
		writeFile(t, s, "/file", "abcdef")

		h, err := s.Open(ctx, "/file", fs.KindFile, fs.OpenRead|fs.OpenWrite, 0, nil)
		require.NoError(t, err)
		defer s.Close(ctx, h)

		require.NoError(t, s.OPunch(ctx, h, 1, 2))

		buf := make([]byte, 6)
		n, err := s.Read(ctx, h, 0, buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{'a', 0, 0, 'd', 'e', 'f'}, buf[:n])
	})
}

// ============================================================================
// Directory Iteration Tests
// ============================================================================

func TestSysReaddir(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestSys(t, MountOptions{})
	writeFile(t, s, "/b", "2")
	writeFile(t, s, "/a", "1")
	require.NoError(t, s.Mkdir(ctx, "/c", 0o755, 0))

	d, err := s.Opendir(ctx, "/")
	require.NoError(t, err)
	defer s.Closedir(ctx, d)

	var names []string
	for {
		entry, err := s.Readdir(ctx, d)
		require.NoError(t, err)
		if entry == nil {
			break
		}
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

// ============================================================================
// Export Tests
// ============================================================================

func TestSysExport(t *testing.T) {
	ctx := context.Background()

	s, store := newTestSys(t, MountOptions{})
	writeFile(t, s, "/shared", "visible")

	blob, err := s.Export()
	require.NoError(t, err)

	imported, err := Import(ctx, store, testConn, blob, MountOptions{})
	require.NoError(t, err)
	defer imported.Umount(ctx)

	attr, err := imported.Stat(ctx, "/shared", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), attr.Size)
}

// ============================================================================
// Metrics Tests
// ============================================================================

func TestSysMetrics(t *testing.T) {
	ctx := context.Background()

	recorder := newOpRecorder()
	s, _ := newTestSys(t, MountOptions{Metrics: recorder})

	writeFile(t, s, "/file", "12345")

	h, err := s.Open(ctx, "/file", fs.KindFile, fs.OpenRead, 0, nil)
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = s.Read(ctx, h, 0, buf)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, h))

	_, err = s.Stat(ctx, "/missing", true)
	require.Error(t, err)

	assert.Contains(t, recorder.ops, "open")
	assert.Contains(t, recorder.ops, "write")
	assert.Contains(t, recorder.ops, "read")
	assert.Contains(t, recorder.ops, "stat")
	assert.Contains(t, recorder.errors, "NotFound")
	assert.Equal(t, 5, recorder.ioBytes["read"])
	assert.Equal(t, 5, recorder.ioBytes["write"])
}
