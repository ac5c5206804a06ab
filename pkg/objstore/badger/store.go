// Package badger implements a BadgerDB-backed object store.
//
// Objects are persisted in a single embedded Badger database using prefixed
// keys (see keys.go). This backend is durable, embeddable, and needs no
// external services, which makes it the default choice for single-node
// deployments.
//
// Thread Safety:
// Badger transactions provide snapshot isolation; every operation runs in
// its own View/Update transaction, so the store is safe for concurrent use.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/objfs/internal/logger"
	"github.com/marmos91/objfs/pkg/objstore"
)

// BadgerStore implements objstore.Store on top of an embedded BadgerDB.
type BadgerStore struct {
	db   *badger.DB
	conn objstore.Connection
}

// Options configures the Badger backend.
type Options struct {
	// Dir is the directory holding the Badger database files.
	Dir string

	// InMemory runs Badger without disk persistence (used by tests).
	InMemory bool

	// Logger silences Badger's internal logging when false.
	VerboseLogging bool
}

// NewBadgerStore opens (or creates) the database in opts.Dir.
func NewBadgerStore(ctx context.Context, conn objstore.Connection, opts Options) (*BadgerStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).WithInMemory(opts.InMemory)
	if !opts.VerboseLogging {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info("Badger object store opened at %q (in-memory=%v)", opts.Dir, opts.InMemory)

	return &BadgerStore{db: db, conn: conn}, nil
}

// Connection returns the pool/container pair this store is attached to.
func (s *BadgerStore) Connection() objstore.Connection {
	return s.conn
}

// getAttr reads and decodes the attribute record inside txn.
func getAttr(txn *badger.Txn, id objstore.ObjectID) (*objstore.ObjectAttr, error) {
	item, err := txn.Get(keyAttr(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, objstore.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object attributes: %w", err)
	}

	var attr objstore.ObjectAttr
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &attr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode object attributes: %w", err)
	}
	return &attr, nil
}

// putAttr encodes and writes the attribute record inside txn.
func putAttr(txn *badger.Txn, id objstore.ObjectID, attr *objstore.ObjectAttr) error {
	encoded, err := json.Marshal(attr)
	if err != nil {
		return fmt.Errorf("failed to encode object attributes: %w", err)
	}
	return txn.Set(keyAttr(id), encoded)
}

// CreateObject allocates a new object with a random identity.
func (s *BadgerStore) CreateObject(
	ctx context.Context,
	class objstore.ObjectClass,
	chunkSize uint64,
) (objstore.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return objstore.NilObjectID, err
	}

	id := uuid.New()
	attr := &objstore.ObjectAttr{Class: class, ChunkSize: chunkSize}

	err := s.db.Update(func(txn *badger.Txn) error {
		return putAttr(txn, id, attr)
	})
	if err != nil {
		return objstore.NilObjectID, err
	}
	return id, nil
}

// OpenObject verifies the object exists. Badger holds no per-open state, so
// this is purely an existence check.
func (s *BadgerStore) OpenObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		_, err := getAttr(txn, id)
		return err
	})
}

// CloseObject is a no-op for Badger; opens are not tracked.
func (s *BadgerStore) CloseObject(ctx context.Context, id objstore.ObjectID) error {
	return ctx.Err()
}

// DeleteObject removes the attribute record, payload, and keyspace.
func (s *BadgerStore) DeleteObject(ctx context.Context, id objstore.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}
		if err := txn.Delete(keyAttr(id)); err != nil {
			return fmt.Errorf("failed to delete attributes: %w", err)
		}
		if err := txn.Delete(keyPayload(id)); err != nil {
			return fmt.Errorf("failed to delete payload: %w", err)
		}

		// Collect keyspace entries first; Badger forbids deleting under an
		// open iterator.
		prefix := keyEntryPrefix(id)
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("failed to delete keyspace entry: %w", err)
			}
		}
		return nil
	})
}

// readPayload returns a copy of the payload inside txn. A missing payload
// record means the payload is empty.
func readPayload(txn *badger.Txn, id objstore.ObjectID) ([]byte, error) {
	item, err := txn.Get(keyPayload(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payload: %w", err)
	}
	return item.ValueCopy(nil)
}

// writePayload stores the payload and refreshes the derived size attributes
// inside txn.
func writePayload(txn *badger.Txn, id objstore.ObjectID, payload []byte) error {
	attr, err := getAttr(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Set(keyPayload(id), payload); err != nil {
		return fmt.Errorf("failed to set payload: %w", err)
	}
	attr.Size = uint64(len(payload))
	attr.BlockCount = (attr.Size + 511) / 512
	return putAttr(txn, id, attr)
}

// ReadAt copies payload bytes starting at offset into buf.
func (s *BadgerStore) ReadAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	buf []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}
		payload, err := readPayload(txn, id)
		if err != nil {
			return err
		}
		if offset >= uint64(len(payload)) {
			return nil
		}
		n = copy(buf, payload[offset:])
		return nil
	})
	return n, err
}

// WriteAt writes data at offset, zero-extending the payload as needed.
func (s *BadgerStore) WriteAt(
	ctx context.Context,
	id objstore.ObjectID,
	offset uint64,
	data []byte,
) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		payload, err := readPayload(txn, id)
		if err != nil {
			return err
		}
		end := offset + uint64(len(data))
		if end > uint64(len(payload)) {
			grown := make([]byte, end)
			copy(grown, payload)
			payload = grown
		}
		copy(payload[offset:end], data)
		return writePayload(txn, id, payload)
	})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// PunchRange deallocates [offset, offset+length) following the interface
// contract: PunchToEnd truncates, offset past the end extends.
func (s *BadgerStore) PunchRange(
	ctx context.Context,
	id objstore.ObjectID,
	offset, length uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		payload, err := readPayload(txn, id)
		if err != nil {
			return err
		}
		size := uint64(len(payload))
		switch {
		case offset > size:
			grown := make([]byte, offset)
			copy(grown, payload)
			payload = grown
		// offset <= size below, so size-offset cannot wrap.
		case length == objstore.PunchToEnd || length >= size-offset:
			payload = payload[:offset]
		default:
			zero := make([]byte, length)
			copy(payload[offset:offset+length], zero)
		}
		return writePayload(txn, id, payload)
	})
}

// GetAttr returns the object's store-level attributes.
func (s *BadgerStore) GetAttr(ctx context.Context, id objstore.ObjectID) (*objstore.ObjectAttr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var attr *objstore.ObjectAttr
	err := s.db.View(func(txn *badger.Txn) error {
		a, err := getAttr(txn, id)
		if err != nil {
			return err
		}
		attr = a
		return nil
	})
	return attr, err
}

// SetAttr updates the class and chunk-size hints, preserving the derived
// size fields.
func (s *BadgerStore) SetAttr(ctx context.Context, id objstore.ObjectID, attr *objstore.ObjectAttr) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		current, err := getAttr(txn, id)
		if err != nil {
			return err
		}
		current.Class = attr.Class
		current.ChunkSize = attr.ChunkSize
		return putAttr(txn, id, current)
	})
}

// ListKeys scans the object's keyspace prefix and returns matching keys in
// lexicographic order (Badger iterates keys sorted).
func (s *BadgerStore) ListKeys(ctx context.Context, id objstore.ObjectID, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}

		scanPrefix := append(keyEntryPrefix(id), prefix...)
		base := len(keyEntryPrefix(id))
		it := txn.NewIterator(badger.IteratorOptions{Prefix: scanPrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[base:]))
		}
		return nil
	})
	return keys, err
}

// GetValue returns the value stored under key.
func (s *BadgerStore) GetValue(ctx context.Context, id objstore.ObjectID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}
		item, err := txn.Get(keyEntry(id, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return objstore.ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get value: %w", err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// PutValue stores value under key.
func (s *BadgerStore) PutValue(ctx context.Context, id objstore.ObjectID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}
		return txn.Set(keyEntry(id, key), value)
	})
}

// DeleteKey removes key from the object's keyspace.
func (s *BadgerStore) DeleteKey(ctx context.Context, id objstore.ObjectID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getAttr(txn, id); err != nil {
			return err
		}
		if _, err := txn.Get(keyEntry(id, key)); errors.Is(err, badger.ErrKeyNotFound) {
			return objstore.ErrKeyNotFound
		} else if err != nil {
			return fmt.Errorf("failed to get value: %w", err)
		}
		return txn.Delete(keyEntry(id, key))
	})
}

// Healthcheck verifies the database is open and readable.
func (s *BadgerStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return objstore.ErrStoreClosed
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	logger.Info("Closing badger object store")
	return s.db.Close()
}
