// Package memory implements an in-memory object store.
//
// This backend keeps every object (payload and key/value namespace) in
// process memory. It is the reference implementation used by the filesystem
// tests and is also useful for embedded, non-durable deployments.
//
// Thread Safety:
// All operations are protected by a single RWMutex. Reads take the read
// lock; mutations take the write lock. Per-key atomicity follows directly
// from the exclusive section.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/objfs/pkg/objstore"
)

// object is the in-memory representation of a single stored object.
type object struct {
	attr    objstore.ObjectAttr
	payload []byte
	keys    map[string][]byte
	opens   int
}

// MemoryStore implements objstore.Store backed by process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	conn    objstore.Connection
	objects map[objstore.ObjectID]*object
	closed  bool
}

// NewMemoryStore creates an empty in-memory object store attached to the
// given connection labels.
func NewMemoryStore(conn objstore.Connection) *MemoryStore {
	return &MemoryStore{
		conn:    conn,
		objects: make(map[objstore.ObjectID]*object),
	}
}

// Connection returns the pool/container pair this store is attached to.
func (s *MemoryStore) Connection() objstore.Connection {
	return s.conn
}

// get returns the object for id or ErrObjectNotFound. Callers must hold mu.
func (s *MemoryStore) get(id objstore.ObjectID) (*object, error) {
	if s.closed {
		return nil, objstore.ErrStoreClosed
	}
	obj, ok := s.objects[id]
	if !ok {
		return nil, objstore.ErrObjectNotFound
	}
	return obj, nil
}

// CreateObject allocates a new object with a random identity.
func (s *MemoryStore) CreateObject(
	ctx context.Context,
	class objstore.ObjectClass,
	chunkSize uint64,
) (objstore.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return objstore.NilObjectID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objstore.NilObjectID, objstore.ErrStoreClosed
	}

	id := uuid.New()
	s.objects[id] = &object{
		attr: objstore.ObjectAttr{Class: class, ChunkSize: chunkSize},
		keys: make(map[string][]byte),
	}
	return id, nil
}

// OpenObject verifies the object exists and bumps its open count.
func (s *MemoryStore) OpenObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return err
	}
	obj.opens++
	return nil
}

// CloseObject drops one open count. Closing a missing or never-opened object
// is not an error, matching the interface contract.
func (s *MemoryStore) CloseObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objstore.ErrStoreClosed
	}
	if obj, ok := s.objects[id]; ok && obj.opens > 0 {
		obj.opens--
	}
	return nil
}

// DeleteObject removes the object, its payload, and its keyspace.
func (s *MemoryStore) DeleteObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.objects, id)
	return nil
}

// ReadAt copies payload bytes starting at offset into buf.
func (s *MemoryStore) ReadAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	buf []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.get(id)
	if err != nil {
		return 0, err
	}

	size := uint64(len(obj.payload))
	if offset >= size {
		return 0, nil
	}
	n := copy(buf, obj.payload[offset:])
	return n, nil
}

// WriteAt stores data at offset, zero-extending the payload when the write
// starts past the current end.
func (s *MemoryStore) WriteAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	data []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return 0, err
	}

	end := offset + uint64(len(data))
	if end > uint64(len(obj.payload)) {
		grown := make([]byte, end)
		copy(grown, obj.payload)
		obj.payload = grown
	}
	copy(obj.payload[offset:end], data)
	obj.attr.Size = uint64(len(obj.payload))
	obj.attr.BlockCount = (obj.attr.Size + 511) / 512
	return len(data), nil
}

// PunchRange deallocates [offset, offset+length). With length PunchToEnd the
// payload is truncated at offset; with offset past the end the payload is
// extended to offset.
func (s *MemoryStore) PunchRange(
	ctx context.Context,
	id objstore.ObjectID,
	offset, length uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return err
	}

	size := uint64(len(obj.payload))
	switch {
	case offset > size:
		grown := make([]byte, offset)
		copy(grown, obj.payload)
		obj.payload = grown
	// offset <= size below, so size-offset cannot wrap.
	case length == objstore.PunchToEnd || length >= size-offset:
		obj.payload = obj.payload[:offset]
	default:
		zero := make([]byte, length)
		copy(obj.payload[offset:offset+length], zero)
	}
	obj.attr.Size = uint64(len(obj.payload))
	obj.attr.BlockCount = (obj.attr.Size + 511) / 512
	return nil
}

// GetAttr returns a copy of the object's store-level attributes.
func (s *MemoryStore) GetAttr(ctx context.Context, id objstore.ObjectID) (*objstore.ObjectAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.get(id)
	if err != nil {
		return nil, err
	}
	attr := obj.attr
	return &attr, nil
}

// SetAttr updates the class and chunk-size hints. Size and block count are
// derived from the payload and are not settable.
func (s *MemoryStore) SetAttr(ctx context.Context, id objstore.ObjectID, attr *objstore.ObjectAttr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return err
	}
	obj.attr.Class = attr.Class
	obj.attr.ChunkSize = attr.ChunkSize
	return nil
}

// ListKeys returns the object's keys matching prefix in sorted order.
func (s *MemoryStore) ListKeys(ctx context.Context, id objstore.ObjectID, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.get(id)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(obj.keys))
	for k := range obj.keys {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetValue returns a copy of the value stored under key.
func (s *MemoryStore) GetValue(ctx context.Context, id objstore.ObjectID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.get(id)
	if err != nil {
		return nil, err
	}
	val, ok := obj.keys[key]
	if !ok {
		return nil, objstore.ErrKeyNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// PutValue stores a copy of value under key.
func (s *MemoryStore) PutValue(ctx context.Context, id objstore.ObjectID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	obj.keys[key] = stored
	return nil
}

// DeleteKey removes key from the object's namespace.
func (s *MemoryStore) DeleteKey(ctx context.Context, id objstore.ObjectID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.get(id)
	if err != nil {
		return err
	}
	if _, ok := obj.keys[key]; !ok {
		return objstore.ErrKeyNotFound
	}
	delete(obj.keys, key)
	return nil
}

// Healthcheck reports whether the store can serve requests.
func (s *MemoryStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objstore.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed and drops all objects.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = nil
	return nil
}
