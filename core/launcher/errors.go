package launcher

import (
	"errors"
	"fmt"
)

// Exit statuses the shell reports for commands that never ran.
const (
	StatusNotExecutable = 126
	StatusNotFound      = 127
)

// ErrSyntax is returned when control tokens are misused.
var ErrSyntax = errors.New("syntax error")

// syntaxErrorf wraps ErrSyntax with detail.
func syntaxErrorf(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, a...))
}

// LaunchError means the child process could not be created.
type LaunchError struct {
	Path  string
	Cause error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: couldn't start process: %v", e.Path, e.Cause)
}

func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// RedirectionError means a redirect target couldn't be opened, the program was
// never started.
type RedirectionError struct {
	// Op is ">" or "<".
	Op    string
	File  string
	Cause error
}

func (e *RedirectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Cause)
}

func (e *RedirectionError) Unwrap() error {
	return e.Cause
}

// ExecError means the OS refused to run the program image.
type ExecError struct {
	Path   string
	Status int
	Cause  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e *ExecError) Unwrap() error {
	return e.Cause
}

// Status returns the exit status the shell should report for err.
func Status(err error) int {
	var execErr *ExecError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &execErr):
		return execErr.Status
	default:
		return 1
	}
}
