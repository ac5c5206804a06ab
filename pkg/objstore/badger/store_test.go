package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/objfs/pkg/objstore"
)

var testConn = objstore.Connection{Pool: "pool", Container: "cont"}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(context.Background(), testConn, Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestBadgerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndOpen", func(t *testing.T) {
		store := newTestStore(t)

		id, err := store.CreateObject(ctx, 3, 4096)
		require.NoError(t, err)

		require.NoError(t, store.OpenObject(ctx, id))

		attr, err := store.GetAttr(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, objstore.ObjectClass(3), attr.Class)
		assert.Equal(t, uint64(4096), attr.ChunkSize)
		assert.Zero(t, attr.Size)
	})

	t.Run("OpenMissingObjectFails", func(t *testing.T) {
		store := newTestStore(t)

		err := store.OpenObject(ctx, objstore.NewObjectID())
		assert.ErrorIs(t, err, objstore.ErrObjectNotFound)
	})

	t.Run("DeleteRemovesAllFacets", func(t *testing.T) {
		store := newTestStore(t)

		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)
		_, err = store.WriteAt(ctx, id, 0, []byte("payload"))
		require.NoError(t, err)
		require.NoError(t, store.PutValue(ctx, id, "e:child", []byte("r")))

		require.NoError(t, store.DeleteObject(ctx, id))

		_, err = store.GetAttr(ctx, id)
		assert.ErrorIs(t, err, objstore.ErrObjectNotFound)
		_, err = store.GetValue(ctx, id, "e:child")
		assert.ErrorIs(t, err, objstore.ErrObjectNotFound)
	})
}

// ============================================================================
// Persistence Tests
// ============================================================================

func TestBadgerPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerStore(ctx, testConn, Options{Dir: dir})
	require.NoError(t, err)

	id, err := store.CreateObject(ctx, 0, 0)
	require.NoError(t, err)
	_, err = store.WriteAt(ctx, id, 0, []byte("durable"))
	require.NoError(t, err)
	require.NoError(t, store.PutValue(ctx, id, "k", []byte("v")))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(ctx, testConn, Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	buf := make([]byte, 7)
	n, err := reopened.ReadAt(ctx, id, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf[:n]))

	value, err := reopened.GetValue(ctx, id, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(value))
}

// ============================================================================
// Payload Tests
// ============================================================================

func TestBadgerPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("SparseWriteAndTruncate", func(t *testing.T) {
		store := newTestStore(t)
		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		_, err = store.WriteAt(ctx, id, 5, []byte("xyz"))
		require.NoError(t, err)

		attr, err := store.GetAttr(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), attr.Size)

		require.NoError(t, store.PunchRange(ctx, id, 2, objstore.PunchToEnd))

		attr, err = store.GetAttr(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), attr.Size)
	})

	t.Run("InteriorPunchZeroes", func(t *testing.T) {
		store := newTestStore(t)
		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		_, err = store.WriteAt(ctx, id, 0, []byte("abcdef"))
		require.NoError(t, err)
		require.NoError(t, store.PunchRange(ctx, id, 1, 2))

		buf := make([]byte, 6)
		n, err := store.ReadAt(ctx, id, 0, buf)
		require.NoError(t, err)
		assert.Equal(t, []byte{'a', 0, 0, 'd', 'e', 'f'}, buf[:n])
	})

	t.Run("HugeRangeTruncates", func(t *testing.T) {
		store := newTestStore(t)
		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		_, err = store.WriteAt(ctx, id, 0, []byte("0123456789"))
		require.NoError(t, err)

		// Reaches past end-of-file even though offset+length would wrap.
		require.NoError(t, store.PunchRange(ctx, id, 5, ^uint64(0)-2))

		attr, err := store.GetAttr(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), attr.Size)
	})

	t.Run("WriteToMissingObjectFails", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.WriteAt(ctx, objstore.NewObjectID(), 0, []byte("x"))
		assert.ErrorIs(t, err, objstore.ErrObjectNotFound)
	})
}

// ============================================================================
// Key/Value Tests
// ============================================================================

func TestBadgerKeyValue(t *testing.T) {
	ctx := context.Background()

	t.Run("ListKeysSortedWithPrefix", func(t *testing.T) {
		store := newTestStore(t)
		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		require.NoError(t, store.PutValue(ctx, id, "e:zulu", nil))
		require.NoError(t, store.PutValue(ctx, id, "e:alpha", nil))
		require.NoError(t, store.PutValue(ctx, id, "x:other", nil))

		keys, err := store.ListKeys(ctx, id, "e:")
		require.NoError(t, err)
		assert.Equal(t, []string{"e:alpha", "e:zulu"}, keys)
	})

	t.Run("DeleteMissingKeyFails", func(t *testing.T) {
		store := newTestStore(t)
		id, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		err = store.DeleteKey(ctx, id, "absent")
		assert.ErrorIs(t, err, objstore.ErrKeyNotFound)
	})

	t.Run("KeyspacesIsolatedPerObject", func(t *testing.T) {
		store := newTestStore(t)
		first, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)
		second, err := store.CreateObject(ctx, 0, 0)
		require.NoError(t, err)

		require.NoError(t, store.PutValue(ctx, first, "k", []byte("1")))

		_, err = store.GetValue(ctx, second, "k")
		assert.ErrorIs(t, err, objstore.ErrKeyNotFound)
	})
}
