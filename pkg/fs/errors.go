package fs

import (
	"errors"

	"github.com/marmos91/objfs/pkg/objstore"
)

// FSError represents a domain error from filesystem operations.
//
// These are business logic errors (path not found, directory not empty,
// wrong entry kind, etc.) as opposed to infrastructure errors from the
// backing store. Callers translate FSError codes to their own error
// surfaces (errno values, protocol status codes).
type FSError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable error description.
	Message string

	// Path is the filesystem path related to the error, when applicable.
	Path string

	// Required carries the needed buffer size for ErrRangeTooSmall.
	Required int

	// Err is the wrapped backend error for ErrStoreFailure.
	Err error
}

// Error implements the error interface.
func (e *FSError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the wrapped backend error to errors.Is/As chains.
func (e *FSError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a filesystem error.
type ErrorCode int

const (
	// ErrNotFound indicates the path (or an intermediate component) does
	// not exist.
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the name already exists and
	// exclusive creation was requested.
	ErrAlreadyExists

	// ErrNotADirectory indicates a non-directory appeared where a directory
	// component was required.
	ErrNotADirectory

	// ErrDirectoryNotEmpty indicates a directory removal without force on a
	// non-empty directory.
	ErrDirectoryNotEmpty

	// ErrWrongType indicates the entry kind does not match the kind the
	// caller required.
	ErrWrongType

	// ErrInvalidOperation indicates the handle kind does not support the
	// operation (e.g. file I/O on a directory handle).
	ErrInvalidOperation

	// ErrInvalidArgument indicates invalid flags, modes, or paths.
	ErrInvalidArgument

	// ErrTooManySymlinkHops indicates symlink resolution exceeded the hop
	// limit (loop protection).
	ErrTooManySymlinkHops

	// ErrRangeTooSmall indicates the caller's output buffer cannot hold the
	// result; Required reports the needed size.
	ErrRangeTooSmall

	// ErrPermissionDenied indicates an access check failed.
	ErrPermissionDenied

	// ErrNoMemory indicates an allocation limit was hit.
	ErrNoMemory

	// ErrStoreFailure wraps an opaque failure from the backing store.
	ErrStoreFailure
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotADirectory:
		return "NotADirectory"
	case ErrDirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case ErrWrongType:
		return "WrongType"
	case ErrInvalidOperation:
		return "InvalidOperation"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrTooManySymlinkHops:
		return "TooManySymlinkHops"
	case ErrRangeTooSmall:
		return "RangeTooSmall"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrNoMemory:
		return "NoMemory"
	case ErrStoreFailure:
		return "StoreFailure"
	default:
		return "Unknown"
	}
}

// newError builds an FSError for a path.
func newError(code ErrorCode, path, message string) *FSError {
	return &FSError{Code: code, Message: message, Path: path}
}

// wrapStoreError converts a backend failure into the filesystem taxonomy.
//
// Backend misses (object/key not found) are translated to ErrNotFound so
// callers never need to know the store's sentinel errors; everything else
// becomes an opaque ErrStoreFailure carrying the cause.
func wrapStoreError(err error, path string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, objstore.ErrObjectNotFound) || errors.Is(err, objstore.ErrKeyNotFound) {
		return newError(ErrNotFound, path, "not found")
	}
	return &FSError{
		Code:    ErrStoreFailure,
		Message: "store operation failed",
		Path:    path,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrStoreFailure for non-FSError
// values.
func CodeOf(err error) ErrorCode {
	var fsErr *FSError
	if errors.As(err, &fsErr) {
		return fsErr.Code
	}
	return ErrStoreFailure
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var fsErr *FSError
	return errors.As(err, &fsErr) && fsErr.Code == code
}

// RequiredSize returns the needed buffer size carried by an ErrRangeTooSmall
// error, or -1 when err is of a different kind.
func RequiredSize(err error) int {
	var fsErr *FSError
	if errors.As(err, &fsErr) && fsErr.Code == ErrRangeTooSmall {
		return fsErr.Required
	}
	return -1
}
