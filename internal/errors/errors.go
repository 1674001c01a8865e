// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ValidationError rejects a request before any persistent state is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFoundError signals a job/item id mismatch; nothing was mutated.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func NewJobNotFound(id string) error {
	return &NotFoundError{Kind: "job", ID: id}
}

func NewItemNotFound(id string) error {
	return &NotFoundError{Kind: "item", ID: id}
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// OperationalError is fatal to the job being dispatched: the loop can no
// longer read items or record progress safely.
type OperationalError struct {
	Op  string
	Err error
}

func (e *OperationalError) Error() string {
	return fmt.Sprintf("operational failure in %s: %v", e.Op, e.Err)
}

func (e *OperationalError) Unwrap() error { return e.Err }

func NewOperational(op string, err error) error {
	return &OperationalError{Op: op, Err: err}
}
