package middleware

import (
	"errors"
	"fmt"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// ErrDuplicateMiddleware is matched by every DuplicateMiddlewareError.
var ErrDuplicateMiddleware = errors.New("middleware already registered")

// ErrInvalidEntry is returned when a registration is missing its name or handler,
// or targets another direction.
var ErrInvalidEntry = errors.New("invalid middleware entry")

// DuplicateMiddlewareError is returned when a name is registered twice in one direction.
type DuplicateMiddlewareError struct {
	Name      string
	Direction domain.Direction
}

func (e *DuplicateMiddlewareError) Error() string {
	return fmt.Sprintf("%s middleware %q is already registered", e.Direction, e.Name)
}

func (e *DuplicateMiddlewareError) Unwrap() error {
	return ErrDuplicateMiddleware
}

// PanicError wraps a panic raised by a handler.
type PanicError struct {
	Name  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("middleware %q panicked: %v", e.Name, e.Value)
}
