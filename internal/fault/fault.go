// Package fault defines the failure kinds surfaced by boundary operations.
//
// Errors carry a code prefix in their message (for operators) and wrap one of
// the sentinels below (for callers), so both strings.Contains checks on the
// rendered message and errors.Is checks keep working.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrIOUnreadable marks a plugin source that could not be read.
	ErrIOUnreadable = errors.New("source unreadable")
	// ErrNotFound marks a reference to a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied marks a caller without the capability to mutate.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStorageUnavailable marks a persistence layer that cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Error is a coded failure wrapping one of the sentinel kinds.
type Error struct {
	Code string
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func NotFound(code, format string, args ...any) error {
	return &Error{Code: code, Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func PermissionDenied(code, format string, args ...any) error {
	return &Error{Code: code, Kind: ErrPermissionDenied, Msg: fmt.Sprintf(format, args...)}
}

func StorageUnavailable(code string, err error) error {
	return &Error{Code: code, Kind: ErrStorageUnavailable, Err: err}
}

func Unreadable(code, ref string, err error) error {
	return &Error{Code: code, Kind: ErrIOUnreadable, Msg: fmt.Sprintf("cannot read %q", ref), Err: err}
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrPermissionDenied):
		return 2
	case errors.Is(err, ErrNotFound):
		return 3
	case errors.Is(err, ErrStorageUnavailable):
		return 4
	default:
		return 1
	}
}
