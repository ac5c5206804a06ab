package fs

import (
	"encoding/binary"
	"time"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Entry Kinds
// ============================================================================

// EntryKind is the closed set of namespace entry kinds.
//
// The kind of an entry is fixed at creation and checked exhaustively at each
// operation boundary; there is no ad hoc mode-bit sniffing anywhere else.
type EntryKind uint8

const (
	// KindDirectory is a directory: an object whose keyspace holds one
	// encoded record per child.
	KindDirectory EntryKind = iota + 1

	// KindFile is a regular file: an object whose payload holds the bytes.
	KindFile

	// KindSymlink is a symbolic link: an entry carrying a literal target
	// path, resolved only when followed.
	KindSymlink
)

// String returns the lowercase kind name.
func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// valid reports whether k is a member of the closed set.
func (k EntryKind) valid() bool {
	return k == KindDirectory || k == KindFile || k == KindSymlink
}

// ============================================================================
// Directory Entries
// ============================================================================

// DirEntry is one named child record in a directory's keyspace.
//
// The record holds everything the namespace knows about the child: its kind,
// permission bits, ownership, timestamps, the identity of the backing store
// object, the store placement hints recorded at creation, and (for symlinks)
// the literal target. Payload size is not stored here - it lives with the
// store object and is merged in at stat time.
//
// Names are unique within a parent; the record is stored under the entry key
// "e:<name>", so uniqueness follows from per-key atomicity in the store.
type DirEntry struct {
	// Name is the entry's name within its parent. Not serialized; it is
	// the keyspace key.
	Name string

	// Kind is the entry kind, immutable after creation.
	Kind EntryKind

	// Mode holds the permission bits (0o7777 max); the kind is NOT encoded
	// in Mode.
	Mode uint32

	// UID and GID identify the owner.
	UID uint32
	GID uint32

	// ObjectID is the identity of the backing store object.
	ObjectID objstore.ObjectID

	// Atime, Mtime, Ctime are the POSIX access, modification, and change
	// times.
	Atime time.Time
	Mtime time.Time
	Ctime time.Time

	// Class and ChunkSize are the opaque store hints recorded at creation.
	Class     objstore.ObjectClass
	ChunkSize uint64

	// Target is the literal symlink target. Only set for KindSymlink.
	Target string
}

// Attr is the POSIX-relevant attribute subset returned by stat.
//
// For symlinks these are the attributes of the link itself unless the caller
// asked to follow, in which case they describe the target.
type Attr struct {
	Kind     EntryKind
	Mode     uint32
	UID      uint32
	GID      uint32
	Size     uint64
	Blocks   uint64
	Atime    time.Time
	Mtime    time.Time
	Ctime    time.Time
	ObjectID objstore.ObjectID
}

// SetAttr selects the attributes a setattr call applies.
//
// Each field is a pointer; nil means "do not change". Ctime is bumped
// automatically whenever any field changes, so it cannot be set directly.
type SetAttr struct {
	Mode  *uint32
	UID   *uint32
	GID   *uint32
	Atime *time.Time
	Mtime *time.Time
}

// empty reports whether no field is selected.
func (s *SetAttr) empty() bool {
	return s == nil ||
		(s.Mode == nil && s.UID == nil && s.GID == nil && s.Atime == nil && s.Mtime == nil)
}

// ============================================================================
// Entry Codec
// ============================================================================

// entryCodecVersion is the on-store record version. Bump when the layout
// changes; decode rejects versions it does not know.
const entryCodecVersion = 1

// entryKeyPrefix namespaces child records within a directory object's
// keyspace, keeping them apart from extended attributes ("x:").
const entryKeyPrefix = "e:"

// xattrKeyPrefix namespaces extended attributes within an object's keyspace.
const xattrKeyPrefix = "x:"

// entryKey returns the keyspace key for a child name.
func entryKey(name string) string {
	return entryKeyPrefix + name
}

// xattrKey returns the keyspace key for an extended attribute name.
func xattrKey(name string) string {
	return xattrKeyPrefix + name
}

// Fixed layout of an encoded entry record, big-endian:
//
//	offset  size  field
//	0       1     codec version
//	1       1     kind tag
//	2       4     mode (permission bits)
//	6       4     uid
//	10      4     gid
//	14      16    object id
//	30      8     atime (unix nanoseconds, signed)
//	38      8     mtime
//	46      8     ctime
//	54      4     object class hint
//	58      8     chunk size hint
//	66      2     target length n
//	68      n     target bytes (symlinks only, n=0 otherwise)
const entryFixedSize = 68

// encodeEntry serializes a DirEntry into the fixed binary record stored as
// the keyspace value.
func encodeEntry(entry *DirEntry) []byte {
	buf := make([]byte, entryFixedSize+len(entry.Target))

	buf[0] = entryCodecVersion
	buf[1] = byte(entry.Kind)
	binary.BigEndian.PutUint32(buf[2:6], entry.Mode)
	binary.BigEndian.PutUint32(buf[6:10], entry.UID)
	binary.BigEndian.PutUint32(buf[10:14], entry.GID)
	copy(buf[14:30], entry.ObjectID[:])
	binary.BigEndian.PutUint64(buf[30:38], uint64(entry.Atime.UnixNano()))
	binary.BigEndian.PutUint64(buf[38:46], uint64(entry.Mtime.UnixNano()))
	binary.BigEndian.PutUint64(buf[46:54], uint64(entry.Ctime.UnixNano()))
	binary.BigEndian.PutUint32(buf[54:58], uint32(entry.Class))
	binary.BigEndian.PutUint64(buf[58:66], entry.ChunkSize)
	binary.BigEndian.PutUint16(buf[66:68], uint16(len(entry.Target)))
	copy(buf[entryFixedSize:], entry.Target)

	return buf
}

// decodeEntry deserializes a keyspace value into a DirEntry. The name is
// supplied by the caller since it is the keyspace key, not part of the value.
func decodeEntry(name string, data []byte) (*DirEntry, error) {
	if len(data) < entryFixedSize {
		return nil, newError(ErrInvalidArgument, name, "directory entry record truncated")
	}
	if data[0] != entryCodecVersion {
		return nil, newError(ErrInvalidArgument, name, "unknown directory entry record version")
	}

	kind := EntryKind(data[1])
	if !kind.valid() {
		return nil, newError(ErrInvalidArgument, name, "invalid entry kind tag")
	}

	targetLen := int(binary.BigEndian.Uint16(data[66:68]))
	if len(data) != entryFixedSize+targetLen {
		return nil, newError(ErrInvalidArgument, name, "directory entry record length mismatch")
	}

	entry := &DirEntry{
		Name:      name,
		Kind:      kind,
		Mode:      binary.BigEndian.Uint32(data[2:6]),
		UID:       binary.BigEndian.Uint32(data[6:10]),
		GID:       binary.BigEndian.Uint32(data[10:14]),
		Atime:     time.Unix(0, int64(binary.BigEndian.Uint64(data[30:38]))),
		Mtime:     time.Unix(0, int64(binary.BigEndian.Uint64(data[38:46]))),
		Ctime:     time.Unix(0, int64(binary.BigEndian.Uint64(data[46:54]))),
		Class:     objstore.ObjectClass(binary.BigEndian.Uint32(data[54:58])),
		ChunkSize: binary.BigEndian.Uint64(data[58:66]),
		Target:    string(data[entryFixedSize:]),
	}
	copy(entry.ObjectID[:], data[14:30])

	return entry, nil
}

// clone returns a deep copy so cached entries never alias caller state.
func (e *DirEntry) clone() *DirEntry {
	cloned := *e
	return &cloned
}
