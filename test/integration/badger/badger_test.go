//go:build integration

package badger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/objfs/pkg/fs"
	"github.com/marmos91/objfs/pkg/objstore"
	"github.com/marmos91/objfs/pkg/objstore/badger"
)

var conn = objstore.Connection{Pool: "integration", Container: "badger"}

// TestBadgerStore_Integration runs integration tests for the BadgerDB object
// store with a mounted namespace on top.
//
// Prerequisites:
//   - None (BadgerDB is embedded, no external services needed)
//   - Run with: go test -tags=integration ./test/integration/badger/...
//
// These tests verify that the BadgerDB object store:
//   - Can be created and initialized
//   - Persists a formatted namespace across restarts
//   - Handles basic file/directory operations through the filesystem layer
func TestBadgerStore_Integration(t *testing.T) {
	ctx := context.Background()

	// ========================================================================
	// Setup: Create temporary directory for test database
	// ========================================================================

	tempDir, err := os.MkdirTemp("", "objfs-badger-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "objects.db")

	// ========================================================================
	// Test: Create store and verify healthcheck
	// ========================================================================

	t.Run("CreateStoreAndHealthcheck", func(t *testing.T) {
		store, err := badger.NewBadgerStore(ctx, conn, badger.Options{Dir: dbPath})
		if err != nil {
			t.Fatalf("Failed to create BadgerStore: %v", err)
		}
		defer store.Close()

		if err := store.Healthcheck(ctx); err != nil {
			t.Fatalf("Healthcheck failed: %v", err)
		}
	})

	// ========================================================================
	// Test: Namespace persists across restarts
	// ========================================================================

	t.Run("Persistence", func(t *testing.T) {
		var rootID objstore.ObjectID

		// Phase 1: Format, write a tree, unmount, close
		{
			store, err := badger.NewBadgerStore(ctx, conn, badger.Options{Dir: dbPath})
			if err != nil {
				t.Fatalf("Failed to create BadgerStore: %v", err)
			}

			rootID, err = fs.Format(ctx, store, 0o755)
			if err != nil {
				t.Fatalf("Failed to format namespace: %v", err)
			}

			mounted, err := fs.Mount(ctx, store, conn, rootID, fs.Options{UID: 1000, GID: 1000})
			if err != nil {
				t.Fatalf("Failed to mount namespace: %v", err)
			}

			if err := mounted.Mkdir(ctx, "/data", 0o755, 0); err != nil {
				t.Fatalf("Failed to create directory: %v", err)
			}

			h, err := mounted.Open(ctx, "/data/file.txt", fs.KindFile,
				fs.OpenCreate|fs.OpenWrite, 0o644, nil)
			if err != nil {
				t.Fatalf("Failed to create file: %v", err)
			}
			if _, err := mounted.Write(ctx, h, 0, []byte("durable bytes")); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if err := h.Close(ctx); err != nil {
				t.Fatalf("Failed to close handle: %v", err)
			}

			if err := mounted.Symlink(ctx, "/data/file.txt", "/latest"); err != nil {
				t.Fatalf("Failed to create symlink: %v", err)
			}

			if err := mounted.Umount(ctx); err != nil {
				t.Fatalf("Failed to unmount: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("Failed to close store: %v", err)
			}
		}

		// Phase 2: Reopen store, remount, verify the tree survived
		{
			store, err := badger.NewBadgerStore(ctx, conn, badger.Options{Dir: dbPath})
			if err != nil {
				t.Fatalf("Failed to reopen BadgerStore: %v", err)
			}
			defer store.Close()

			mounted, err := fs.Mount(ctx, store, conn, rootID, fs.Options{UID: 1000, GID: 1000})
			if err != nil {
				t.Fatalf("Failed to remount namespace: %v", err)
			}
			defer mounted.Umount(ctx)

			attr, err := mounted.Stat(ctx, "/latest", fs.FollowSymlinks)
			if err != nil {
				t.Fatalf("Failed to stat through persisted symlink: %v", err)
			}
			if attr.Kind != fs.KindFile {
				t.Errorf("Expected file kind, got %v", attr.Kind)
			}
			if attr.Size != uint64(len("durable bytes")) {
				t.Errorf("Expected size %d, got %d", len("durable bytes"), attr.Size)
			}

			h, err := mounted.Open(ctx, "/data/file.txt", fs.KindFile, fs.OpenRead, 0, nil)
			if err != nil {
				t.Fatalf("Failed to open persisted file: %v", err)
			}
			defer h.Close(ctx)

			buf := make([]byte, 32)
			n, err := mounted.Read(ctx, h, 0, buf)
			if err != nil {
				t.Fatalf("Failed to read persisted file: %v", err)
			}
			if string(buf[:n]) != "durable bytes" {
				t.Errorf("Expected 'durable bytes', got %q", string(buf[:n]))
			}
		}
	})
}

// TestBadgerStore_NamespaceOperations tests directory operations and xattrs
// against the on-disk store.
func TestBadgerStore_NamespaceOperations(t *testing.T) {
	ctx := context.Background()

	// ========================================================================
	// Setup
	// ========================================================================

	tempDir, err := os.MkdirTemp("", "objfs-badger-ns-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := badger.NewBadgerStore(ctx, conn, badger.Options{Dir: filepath.Join(tempDir, "db")})
	if err != nil {
		t.Fatalf("Failed to create BadgerStore: %v", err)
	}
	defer store.Close()

	rootID, err := fs.Format(ctx, store, 0o755)
	if err != nil {
		t.Fatalf("Failed to format namespace: %v", err)
	}

	mounted, err := fs.Mount(ctx, store, conn, rootID, fs.Options{UID: 1000, GID: 1000})
	if err != nil {
		t.Fatalf("Failed to mount namespace: %v", err)
	}
	defer mounted.Umount(ctx)

	// ========================================================================
	// Test: Directory listing
	// ========================================================================

	t.Run("ListDirectory", func(t *testing.T) {
		if err := mounted.Mkdir(ctx, "/a", 0o755, 0); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := mounted.Mknod(ctx, "/b.txt", 0o644, nil); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}

		dir, err := mounted.OpenDir(ctx, "/")
		if err != nil {
			t.Fatalf("Failed to open directory: %v", err)
		}
		defer dir.Close(ctx)

		var names []string
		for {
			entry, err := dir.Next(ctx)
			if err != nil {
				t.Fatalf("Failed to iterate directory: %v", err)
			}
			if entry == nil {
				break
			}
			names = append(names, entry.Name)
		}

		if len(names) != 2 || names[0] != "a" || names[1] != "b.txt" {
			t.Errorf("Expected sorted listing [a b.txt], got %v", names)
		}
	})

	// ========================================================================
	// Test: Extended attributes survive in the object keyspace
	// ========================================================================

	t.Run("ExtendedAttributes", func(t *testing.T) {
		if err := mounted.SetXattr(ctx, "/b.txt", "user.checksum", []byte("abc123"), 0, fs.FollowSymlinks); err != nil {
			t.Fatalf("Failed to set xattr: %v", err)
		}

		buf := make([]byte, 16)
		n, err := mounted.GetXattr(ctx, "/b.txt", "user.checksum", buf, fs.FollowSymlinks)
		if err != nil {
			t.Fatalf("Failed to get xattr: %v", err)
		}
		if string(buf[:n]) != "abc123" {
			t.Errorf("Expected xattr 'abc123', got %q", string(buf[:n]))
		}
	})

	// ========================================================================
	// Test: Recursive removal
	// ========================================================================

	t.Run("RecursiveRemove", func(t *testing.T) {
		if err := mounted.Mkdir(ctx, "/a/deep", 0o755, 0); err != nil {
			t.Fatalf("Failed to create nested directory: %v", err)
		}
		if err := mounted.Mknod(ctx, "/a/deep/leaf", 0o644, nil); err != nil {
			t.Fatalf("Failed to create leaf file: %v", err)
		}

		if _, err := mounted.Remove(ctx, "/a", true, 0); err != nil {
			t.Fatalf("Failed to remove subtree: %v", err)
		}

		if _, err := mounted.Stat(ctx, "/a", fs.FollowSymlinks); err == nil {
			t.Error("Expected stat on removed directory to fail")
		}
	})
}
