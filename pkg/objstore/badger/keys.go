package badger

import (
	"github.com/marmos91/objfs/pkg/objstore"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a flat key-value store, so the object facets are mapped onto
// prefixed keys:
//
// Data Type          Prefix  Key Format              Value
// =====================================================================
// Object Attributes  "a:"    a:<objectID>            ObjectAttr (JSON)
// Object Payload     "p:"    p:<objectID>            raw bytes
// Object Keyspace    "k:"    k:<objectID>:<key>      raw bytes
//
// The "k:" namespace is denormalized (one Badger key per object key), which
// makes ListKeys an efficient prefix scan: all keys of object X live under
// "k:<X>:". Attributes and payload are point lookups.
const (
	prefixAttr    = "a:"
	prefixPayload = "p:"
	prefixKey     = "k:"
)

// keyAttr generates the key for an object's attribute record.
func keyAttr(id objstore.ObjectID) []byte {
	return []byte(prefixAttr + id.String())
}

// keyPayload generates the key for an object's payload.
func keyPayload(id objstore.ObjectID) []byte {
	return []byte(prefixPayload + id.String())
}

// keyEntry generates the key for one entry of an object's keyspace.
func keyEntry(id objstore.ObjectID, key string) []byte {
	return []byte(prefixKey + id.String() + ":" + key)
}

// keyEntryPrefix generates the scan prefix covering an object's keyspace.
func keyEntryPrefix(id objstore.ObjectID) []byte {
	return []byte(prefixKey + id.String() + ":")
}
