package utils

import "fmt"

// AppError carries the failing operation alongside a human-facing message,
// so admin responses and logs can show where a request died without the
// caller re-deriving it from a wrapped chain.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError; err may be nil for pure-domain
// failures like "feed already monitored".
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
