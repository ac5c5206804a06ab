package objstore

import (
	"context"

	"github.com/google/uuid"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store is the backing object store consumed by the filesystem layer.
//
// The store is a flat, object-addressed service: every object is identified
// by an ObjectID and exposes two independent facets:
//
//   - A byte payload accessed with ReadAt/WriteAt/PunchRange. Used for
//     regular file content.
//   - A sorted key/value namespace accessed with ListKeys/GetValue/PutValue/
//     DeleteKey. Used for directory entries and extended attributes.
//
// The filesystem layer maps the hierarchical namespace onto this flat store:
// a directory is an object whose keyspace holds one encoded record per child,
// and a file is an object whose payload holds the file bytes. The store knows
// nothing about paths, directories, or symlinks.
//
// Consistency:
// Implementations must provide per-key atomicity (a PutValue either fully
// replaces the previous value or fails) and at-most-one-writer-wins semantics
// for concurrent writers of the same key. No cross-key or cross-object
// transactional guarantees are required; the filesystem layer does not assume
// any.
//
// Error Handling:
// Implementations return ErrObjectNotFound / ErrKeyNotFound for missing
// objects and keys so the filesystem layer can translate them precisely.
// All other failures are backend-specific and are wrapped by the caller.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writers of the same payload range are resolved last-write-wins.
type Store interface {
	// ========================================================================
	// Object Lifecycle
	// ========================================================================

	// CreateObject allocates a new object and returns its identity.
	//
	// The class and chunk size hints are stored with the object and are
	// opaque to the filesystem layer; backends may use them for placement
	// or striping decisions, or ignore them entirely.
	CreateObject(ctx context.Context, class ObjectClass, chunkSize uint64) (ObjectID, error)

	// OpenObject verifies the object exists and marks it open.
	//
	// Backends that track open state use this for resource accounting;
	// others only perform the existence check. Returns ErrObjectNotFound
	// if the object does not exist.
	OpenObject(ctx context.Context, id ObjectID) error

	// CloseObject releases any per-open resources held by the backend.
	//
	// Closing an object that was never opened is not an error.
	CloseObject(ctx context.Context, id ObjectID) error

	// DeleteObject removes the object, its payload, and its keyspace.
	DeleteObject(ctx context.Context, id ObjectID) error

	// ========================================================================
	// Payload I/O
	// ========================================================================

	// ReadAt reads up to len(buf) bytes from the payload at offset.
	//
	// Returns the number of bytes read. Reading at or past end of payload
	// returns 0 with no error; a read crossing end of payload returns the
	// bytes available. Short reads are not an error.
	ReadAt(ctx context.Context, id ObjectID, offset uint64, buf []byte) (int, error)

	// WriteAt writes data into the payload at offset, extending it when the
	// write reaches past the current end.
	//
	// Returns the number of bytes written.
	WriteAt(ctx context.Context, id ObjectID, offset uint64, data []byte) (int, error)

	// PunchRange deallocates payload bytes in [offset, offset+length).
	//
	// A length of PunchToEnd truncates the payload at offset. If offset is
	// beyond the current payload size the payload is extended to offset and
	// nothing is deallocated.
	PunchRange(ctx context.Context, id ObjectID, offset, length uint64) error

	// ========================================================================
	// Object Attributes
	// ========================================================================

	// GetAttr returns the store-level attributes of the object.
	GetAttr(ctx context.Context, id ObjectID) (*ObjectAttr, error)

	// SetAttr updates the store-level attributes of the object. Size cannot
	// be set through this method; use PunchRange or WriteAt.
	SetAttr(ctx context.Context, id ObjectID, attr *ObjectAttr) error

	// ========================================================================
	// Key/Value Namespace
	// ========================================================================

	// ListKeys returns the keys of the object's namespace that start with
	// prefix, in lexicographic order. An empty prefix lists all keys.
	ListKeys(ctx context.Context, id ObjectID, prefix string) ([]string, error)

	// GetValue returns the value stored under key. Returns ErrKeyNotFound
	// if the key does not exist.
	GetValue(ctx context.Context, id ObjectID, key string) ([]byte, error)

	// PutValue stores value under key, replacing any previous value.
	PutValue(ctx context.Context, id ObjectID, key string, value []byte) error

	// DeleteKey removes key from the object's namespace. Deleting a missing
	// key returns ErrKeyNotFound.
	DeleteKey(ctx context.Context, id ObjectID, key string) error

	// ========================================================================
	// Lifecycle & Health
	// ========================================================================

	// Healthcheck verifies the backend can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ============================================================================
// Identifiers and Attributes
// ============================================================================

// ObjectID uniquely identifies an object within a container.
//
// IDs are UUID v4, generated by CreateObject. They never change for the
// lifetime of the object, which keeps directory entries stable across
// renames.
type ObjectID = uuid.UUID

// NilObjectID is the zero object identity.
var NilObjectID = uuid.Nil

// NewObjectID generates a fresh object identity.
func NewObjectID() ObjectID {
	return uuid.New()
}

// ObjectClass is an opaque placement hint recorded at object creation.
//
// The filesystem layer passes it through unchanged; 0 selects the backend
// default.
type ObjectClass uint32

// PunchToEnd is the length sentinel for PunchRange meaning "everything from
// offset to the end of the payload", turning the punch into a truncate.
const PunchToEnd = ^uint64(0)

// ObjectAttr contains the store-level attributes of an object.
//
// These are the attributes the store itself maintains. Filesystem-level
// attributes (mode, ownership, timestamps) live in directory entries and are
// not the store's concern.
type ObjectAttr struct {
	// Class is the placement hint recorded at creation.
	Class ObjectClass

	// ChunkSize is the striping hint recorded at creation (0 = default).
	ChunkSize uint64

	// Size is the current payload size in bytes.
	Size uint64

	// BlockCount is the number of 512-byte blocks backing the payload.
	// Backends that track allocation report allocated blocks; others derive
	// it from Size.
	BlockCount uint64
}

// Connection identifies the pool/container pair a store is attached to.
//
// The filesystem layer records the connection in the mount handle so that a
// cooperating process importing the handle can verify it is attached to the
// same container.
type Connection struct {
	// Pool is the storage pool label (backend-specific, e.g. a bucket or a
	// database path).
	Pool string

	// Container is the container label within the pool.
	Container string
}

// String returns "pool/container" for logging.
func (c Connection) String() string {
	return c.Pool + "/" + c.Container
}
