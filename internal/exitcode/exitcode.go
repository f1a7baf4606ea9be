// Package exitcode defines the process exit codes that scripts branch on,
// and an error type that carries one up to main.
package exitcode

import (
	"errors"
	"fmt"
)

// Published exit codes. Never renumber these.
const (
	Success         = 0
	Failure         = 1
	BackendMissing  = 2
	MaxIterations   = 4
	NoProgress      = 5
	Unauthenticated = 6
	Usage           = 64 // EX_USAGE: unknown or unsupported backend
	DataErr         = 65 // EX_DATAERR: unusable completion payload
	NoInput         = 66 // EX_NOINPUT: prompt source missing, unreadable or empty
	CantCreate      = 73 // EX_CANTCREAT: artifacts could not be written
	TempFail        = 75 // EX_TEMPFAIL: global timeout
)

// Codes an adapter reports when the subprocess itself could not finish.
const (
	SubprocessTimeout = 124
	SpawnFailed       = 127
)

// Coder is implemented by errors that know which exit code they map to.
type Coder interface {
	error
	ExitCode() int
}

// Error is an error that carries an explicit process exit code.
type Error struct {
	code  int
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

// ExitCode returns the code the process should exit with.
func (e *Error) ExitCode() int { return e.code }

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with a message.
func New(code int, msg string) error {
	return &Error{code: normalize(code), msg: msg}
}

// Newf is a formatted variant of New.
func Newf(code int, format string, args ...any) error {
	return &Error{code: normalize(code), msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around an underlying cause.
func Wrap(code int, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &Error{code: normalize(code), msg: msg, cause: cause}
}

// Silent returns an error that only sets the exit code. Commands use it when
// the outcome has already been reported on stdout/stderr.
func Silent(code int) error {
	return &Error{code: normalize(code)}
}

// Of extracts the exit code from err, defaulting to Failure.
func Of(err error) int {
	if err == nil {
		return Success
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return Failure
}

// IsSilent reports whether err carries no message worth printing.
func IsSilent(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.msg == "" && e.cause == nil
}

func normalize(code int) int {
	// 0 means success; an error must never map to it.
	if code <= 0 {
		return Failure
	}
	return code
}
