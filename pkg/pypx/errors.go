package pypx

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error represents a failure reading the pypx archive.
//
// Archive errors are domain errors: they describe what was (or was not) found
// on disk. The HTTP adapter translates the Code into a status code; only
// ErrNotFound (and a missing parent directory) is reported as an absent
// resource, everything else is a server-side failure.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Path is the file or directory the error relates to
	Path string

	// Reason is a human-readable description (Malformed and Runtime errors)
	Reason string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Reason != "" {
		msg += " -- " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause so errors.Is(err, fs.ErrNotExist) keeps working.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of an archive error.
type ErrorCode int

const (
	// ErrNotFound indicates an expected absence (study, series, instance or pixel file)
	ErrNotFound ErrorCode = iota

	// ErrMalformed indicates structurally or semantically invalid data on disk
	ErrMalformed

	// ErrIO indicates a filesystem failure other than not-found
	ErrIO

	// ErrParentDirNotReadable indicates a containing directory could not be listed
	ErrParentDirNotReadable

	// ErrRuntime indicates a failure of supporting infrastructure (worker dispatch, panics)
	ErrRuntime

	// ErrInvalidArgument indicates a request parameter was unusable (e.g. frame number 0)
	ErrInvalidArgument
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrMalformed:
		return "malformed"
	case ErrIO:
		return "i/o error"
	case ErrParentDirNotReadable:
		return "parent directory not readable"
	case ErrRuntime:
		return "runtime error"
	case ErrInvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// NotFound builds an ErrNotFound error for path.
func NotFound(path string) *Error {
	return &Error{Code: ErrNotFound, Path: path}
}

// Malformed builds an ErrMalformed error for path with a reason and optional cause.
func Malformed(path, reason string, cause error) *Error {
	return &Error{Code: ErrMalformed, Path: path, Reason: reason, Err: cause}
}

// IOError builds an ErrIO error wrapping the underlying filesystem error.
func IOError(path string, cause error) *Error {
	return &Error{Code: ErrIO, Path: path, Err: cause}
}

// ParentDirNotReadable builds an ErrParentDirNotReadable error for dir.
func ParentDirNotReadable(dir string, cause error) *Error {
	return &Error{Code: ErrParentDirNotReadable, Path: dir, Err: cause}
}

// Runtime builds an ErrRuntime error.
func Runtime(path, reason string, cause error) *Error {
	return &Error{Code: ErrRuntime, Path: path, Reason: reason, Err: cause}
}

// InvalidArgument builds an ErrInvalidArgument error.
func InvalidArgument(reason string) *Error {
	return &Error{Code: ErrInvalidArgument, Reason: reason}
}

// FromOpenError maps an error from opening path to NotFound or IO.
func FromOpenError(path string, err error) *Error {
	if errors.Is(err, fs.ErrNotExist) {
		return NotFound(path)
	}
	return IOError(path, err)
}

// CodeOf returns the ErrorCode carried by err and whether err is an archive error.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is an archive ErrNotFound.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}
