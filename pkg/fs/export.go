package fs

import (
	"bytes"
	"context"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Mount Export / Import
// ============================================================================

// exportMagic guards against feeding arbitrary blobs to Import.
const exportMagic = 0x4f424653 // "OBFS"

// exportVersion is bumped when the blob layout changes.
const exportVersion = 1

// mountExport is the wire form of a mount handle. XDR keeps the blob
// portable across architectures; fields are fixed-width and the identities
// travel as raw bytes.
type mountExport struct {
	Magic   uint32
	Version uint32
	Pool    string
	Cont    string
	RootID  [16]byte
	Flags   uint32
}

// Export serializes the mount into a compact blob another process can feed
// to Import to mount the same namespace without re-discovering the root.
//
// The blob carries the store connection coordinates, the root identity, and
// the mount flags. It does not carry credentials; the importer supplies its
// own identity in Options.
func (f *Filesystem) Export() ([]byte, error) {
	if f.unmounted.Load() {
		return nil, newError(ErrInvalidOperation, "/", "filesystem is unmounted")
	}

	export := mountExport{
		Magic:   exportMagic,
		Version: exportVersion,
		Pool:    f.conn.Pool,
		Cont:    f.conn.Container,
		RootID:  [16]byte(f.rootID),
		Flags:   uint32(f.flags),
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &export); err != nil {
		return nil, newError(ErrInvalidArgument, "/", "failed to encode mount blob")
	}
	return buf.Bytes(), nil
}

// DecodeExport parses a mount blob and returns the connection coordinates,
// root identity, and flags it carries.
func DecodeExport(blob []byte) (objstore.Connection, objstore.ObjectID, MountFlags, error) {
	var export mountExport
	if _, err := xdr.Unmarshal(bytes.NewReader(blob), &export); err != nil {
		return objstore.Connection{}, objstore.NilObjectID, 0,
			newError(ErrInvalidArgument, "", "malformed mount blob")
	}
	if export.Magic != exportMagic {
		return objstore.Connection{}, objstore.NilObjectID, 0,
			newError(ErrInvalidArgument, "", "not a mount blob")
	}
	if export.Version != exportVersion {
		return objstore.Connection{}, objstore.NilObjectID, 0,
			newError(ErrInvalidArgument, "", "unsupported mount blob version")
	}

	conn := objstore.Connection{Pool: export.Pool, Container: export.Cont}
	return conn, objstore.ObjectID(export.RootID), MountFlags(export.Flags), nil
}

// Import mounts the namespace described by a blob produced by Export. The
// store must be connected to the same backend; the blob's connection
// coordinates are checked against the caller's.
func Import(ctx context.Context, store objstore.Store, conn objstore.Connection, blob []byte, opts Options) (*Filesystem, error) {
	blobConn, rootID, flags, err := DecodeExport(blob)
	if err != nil {
		return nil, err
	}
	if blobConn != conn {
		return nil, newError(ErrInvalidArgument, "",
			"mount blob belongs to a different container")
	}
	if opts.Flags == 0 {
		opts.Flags = flags
	}
	return Mount(ctx, store, conn, rootID, opts)
}
