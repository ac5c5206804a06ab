package fs

import (
	"context"
	"strings"

	"github.com/marmos91/objfs/pkg/objstore"
)

// ============================================================================
// Path Resolution
// ============================================================================

// FollowPolicy controls how the resolver treats a symlink in the LAST path
// component. Symlinks in intermediate components are always followed.
type FollowPolicy int

const (
	// FollowSymlinks resolves a terminal symlink to its target.
	FollowSymlinks FollowPolicy = iota

	// NoFollowLast stops at a terminal symlink and returns the link entry
	// itself.
	NoFollowLast
)

const (
	// maxSymlinkHops bounds symlink traversals per resolution. Exceeding it
	// is loop protection, reported as ErrTooManySymlinkHops.
	maxSymlinkHops = 40

	// maxPathLen bounds the total path length accepted by any operation.
	maxPathLen = 4096
)

// resolution is the outcome of a path walk.
//
// parentID is the directory holding the terminal entry. entry is nil when
// the terminal component does not exist, which lets create paths and lookup
// paths share one walk. name is the terminal component after symlink
// rewriting, so a create lands under the name the last symlink pointed at.
type resolution struct {
	parentID objstore.ObjectID
	entry    *DirEntry
	name     string
}

// isRootResolution reports whether the walk terminated on the mount root
// itself ("/", "/.", "/a/..").
func (r *resolution) isRootResolution() bool {
	return r.name == ""
}

// splitPath validates and splits an absolute path into components, dropping
// empty and "." components. ".." survives; the walker interprets it against
// its directory stack.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, newError(ErrInvalidArgument, path, "empty path")
	}
	if len(path) > maxPathLen {
		return nil, newError(ErrInvalidArgument, path, "path too long")
	}
	if path[0] != '/' {
		return nil, newError(ErrInvalidArgument, path, "path is not absolute")
	}

	var components []string
	for _, comp := range strings.Split(path, "/") {
		switch comp {
		case "", ".":
			continue
		default:
			if len(comp) > maxNameLen {
				return nil, newError(ErrInvalidArgument, path, "path component too long")
			}
			components = append(components, comp)
		}
	}
	return components, nil
}

// resolve walks an absolute path from the mount root and returns where it
// landed.
//
// The walk keeps a stack of directory identities so ".." is resolved
// structurally rather than textually, and a queue of pending components that
// symlink targets are spliced into: a relative target continues from the
// link's directory, an absolute target restarts the walk from the root.
// Every traversed link counts against the hop limit regardless of position.
func (f *Filesystem) resolve(ctx context.Context, path string, policy FollowPolicy) (*resolution, error) {
	pending, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	// dirStack[0] is always the root; ".." at the root stays at the root.
	dirStack := []objstore.ObjectID{f.rootID}
	hops := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		last := len(pending) == 0

		if name == ".." {
			if len(dirStack) > 1 {
				dirStack = dirStack[:len(dirStack)-1]
			}
			continue
		}

		current := dirStack[len(dirStack)-1]
		entry, err := f.getEntry(ctx, current, name)
		if err != nil {
			if last && IsCode(err, ErrNotFound) {
				// Missing terminal entry: a valid landing spot for
				// create operations.
				return &resolution{parentID: current, entry: nil, name: name}, nil
			}
			if IsCode(err, ErrNotFound) {
				return nil, newError(ErrNotFound, path, "no such file or directory")
			}
			return nil, err
		}

		switch entry.Kind {
		case KindSymlink:
			if last && policy == NoFollowLast {
				return &resolution{parentID: current, entry: entry, name: name}, nil
			}
			hops++
			if hops > maxSymlinkHops {
				return nil, newError(ErrTooManySymlinkHops, path, "too many levels of symbolic links")
			}
			target := entry.Target
			if target == "" {
				return nil, newError(ErrNotFound, path, "symlink has an empty target")
			}
			targetComponents, splitErr := splitRelative(target)
			if splitErr != nil {
				return nil, splitErr
			}
			if target[0] == '/' {
				dirStack = dirStack[:1]
			}
			pending = append(targetComponents, pending...)

		case KindDirectory:
			if last {
				return &resolution{parentID: current, entry: entry, name: name}, nil
			}
			dirStack = append(dirStack, entry.ObjectID)

		default:
			if last {
				return &resolution{parentID: current, entry: entry, name: name}, nil
			}
			return nil, newError(ErrNotADirectory, path, "path component is not a directory")
		}
	}

	// The walk consumed everything without a terminal component: the path
	// denotes the root (or collapsed onto a directory via "..").
	final := dirStack[len(dirStack)-1]
	if final == f.rootID {
		root, err := f.loadEntryFor(ctx, f.root)
		if err != nil {
			return nil, err
		}
		return &resolution{parentID: objstore.NilObjectID, entry: root, name: ""}, nil
	}
	// Non-root directory reached purely through "..": cannot happen, since
	// ".." only pops below entries that were pushed by name.
	return nil, newError(ErrInvalidArgument, path, "unresolvable path")
}

// splitRelative splits a symlink target, which unlike operation paths may be
// relative.
func splitRelative(target string) ([]string, error) {
	if len(target) > maxPathLen {
		return nil, newError(ErrInvalidArgument, target, "symlink target too long")
	}
	var components []string
	for _, comp := range strings.Split(target, "/") {
		switch comp {
		case "", ".":
			continue
		default:
			if len(comp) > maxNameLen {
				return nil, newError(ErrInvalidArgument, target, "symlink target component too long")
			}
			components = append(components, comp)
		}
	}
	return components, nil
}

// resolveDir walks a path and requires the result to be an existing
// directory.
func (f *Filesystem) resolveDir(ctx context.Context, path string) (*resolution, error) {
	res, err := f.resolve(ctx, path, FollowSymlinks)
	if err != nil {
		return nil, err
	}
	if res.entry == nil {
		return nil, newError(ErrNotFound, path, "no such file or directory")
	}
	if res.entry.Kind != KindDirectory {
		return nil, newError(ErrNotADirectory, path, "not a directory")
	}
	return res, nil
}

// resolveExisting walks a path and requires the terminal entry to exist.
func (f *Filesystem) resolveExisting(ctx context.Context, path string, policy FollowPolicy) (*resolution, error) {
	res, err := f.resolve(ctx, path, policy)
	if err != nil {
		return nil, err
	}
	if res.entry == nil {
		return nil, newError(ErrNotFound, path, "no such file or directory")
	}
	return res, nil
}
