package objstore

import "errors"

// Sentinel errors returned by Store implementations.
//
// The filesystem layer matches these with errors.Is to translate backend
// misses into its own error taxonomy; everything else is treated as an
// opaque store failure.
var (
	// ErrObjectNotFound indicates the object ID does not exist in the store.
	ErrObjectNotFound = errors.New("objstore: object not found")

	// ErrKeyNotFound indicates the key does not exist in the object's
	// namespace.
	ErrKeyNotFound = errors.New("objstore: key not found")

	// ErrStoreClosed indicates the store has been closed and can no longer
	// serve requests.
	ErrStoreClosed = errors.New("objstore: store closed")
)
