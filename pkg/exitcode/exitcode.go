// Package exitcode provides the process exit codes for ansuz.
package exitcode

import "errors"

// Exit codes for the ansuz CLI.
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	FindingsPresent = 3
	FileSystemError = 4
)

// String returns a human-readable description of the exit code.
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case FindingsPresent:
		return "Findings present"
	case FileSystemError:
		return "File system error"
	default:
		return "Unknown error"
	}
}

// Error carries the exit code a command wants the process to end with.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return String(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches code to err. A nil err still produces an error so that
// callers can signal a non-zero exit without an underlying failure.
func Wrap(code int, err error) error {
	return &Error{Code: code, Err: err}
}

// From extracts the exit code carried by err. Errors without one map to
// GeneralError, and nil maps to Success.
func From(err error) int {
	if err == nil {
		return Success
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return GeneralError
}
