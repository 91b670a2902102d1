package common

import (
	"errors"

	"github.com/mhsanaei/3x-ui-usage/logger"
)

var (
	// ErrEmptyIdentifier is returned when a lookup is attempted with an empty uuid or username.
	ErrEmptyIdentifier = errors.New("identifier must not be empty")
	// ErrSpeedTestTimeout is returned when a speed-test tool outlives its deadline.
	ErrSpeedTestTimeout = errors.New("speed test timed out")
)

// LookupError wraps storage connection and query failures of a traffic lookup.
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func NewLookupError(op string, err error) error {
	return &LookupError{Op: op, Err: err}
}

// Combine joins the non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

// Recover must be deferred directly. It stops a panic, logs it with msg and returns the
// recovered value.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
