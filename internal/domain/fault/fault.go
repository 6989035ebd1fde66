// Package fault defines the error taxonomy shared by all domain services.
//
// Every error is a precondition violation, not a transient failure: callers
// surface them unchanged and never retry. A failed operation leaves the
// affected record in its prior state.
package fault

import "fmt"

// NotFoundError indicates the operation referenced a record that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStateError indicates a requested status transition is not a legal
// edge from the record's current state.
type InvalidStateError struct {
	Kind string
	From string
	To   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Kind, e.From, e.To)
}

// ValidationError indicates required input for an operation is missing or
// malformed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PermissionError indicates the acting role is not allowed to perform the
// requested operation.
type PermissionError struct {
	Role   string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s may not %s", e.Role, e.Action)
}
