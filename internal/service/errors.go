package service

import (
	"errors"
	"fmt"
)

// Client errors.  Handlers map them to 404 (ErrNotFound) or 400.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid auction state")
	ErrInvalidAmount     = errors.New("invalid bid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrValidation        = errors.New("validation failed")
)

// ErrInternal wraps storage and transaction failures.  The cause stays in
// the chain for logging; clients only see a generic message.
var ErrInternal = errors.New("internal error")

// Error is a client error: Kind is one of the sentinels above and Msg is
// the text returned to the caller.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is lets errors.Is match the sentinel kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
