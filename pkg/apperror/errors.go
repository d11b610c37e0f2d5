package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateIdentifier is returned when a generated identifier keeps
// colliding with an existing row after every retry.
var ErrDuplicateIdentifier = errors.New("duplicate_identifier")

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed an invariant.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, code, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: code, Message: message}}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation_error"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation_error: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Collector accumulates field failures.
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, code, message string) {
	c.fields = append(c.fields, FieldError{Field: field, Code: code, Message: message})
}

func (c *Collector) Merge(err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		c.fields = append(c.fields, verr.Fields...)
		return nil
	}
	return err
}

func (c *Collector) Err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: c.fields}
}

// WorkflowViolation blocks a state change without touching the entity.
type WorkflowViolation struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *WorkflowViolation) Error() string {
	return fmt.Sprintf("workflow_violation: %s %s -> %s: %s", e.Entity, e.From, e.To, e.Reason)
}

// NotificationDispatchError wraps a failed hand-off to a recipient. It is
// logged and never returned to callers of a committed mutation.
type NotificationDispatchError struct {
	Recipient string
	Type      string
	Err       error
}

func (e *NotificationDispatchError) Error() string {
	return fmt.Sprintf("notification_dispatch_failed: %s to %s: %v", e.Type, e.Recipient, e.Err)
}

func (e *NotificationDispatchError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func IsWorkflowViolation(err error) bool {
	var werr *WorkflowViolation
	return errors.As(err, &werr)
}
