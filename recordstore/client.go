package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carelane/governor/models"
)

// Provenance identifies the origin of a governed mutation: which model
// proposed it, how confident it was, and who approved it.
type Provenance struct {
	SourceModel string   `json:"source_model"`
	Confidence  float64  `json:"confidence"`
	ApprovedBy  []string `json:"approved_by,omitempty"`
}

// Mutation is one governed write against the clinical record store
type Mutation struct {
	CommandID  uuid.UUID             `json:"command_id"`
	Kind       models.CommandKind    `json:"kind"`
	SubjectID  string                `json:"subject_id"`
	Payload    models.CommandPayload `json:"payload"`
	Provenance Provenance            `json:"provenance"`
}

// Client is the external clinical record store. The store itself is outside
// this service; implementations wrap whatever transport it speaks.
type Client interface {
	// Apply performs the mutation and returns the id of the resource it
	// created or updated. Errors are classified via IsRetryable.
	Apply(ctx context.Context, mutation Mutation) (string, error)
}

// Error wraps a store failure with its retry classification
type Error struct {
	Retryable bool
	Cause     error
}

// Error implements the error interface
func (e *Error) Error() string {
	class := "non-retryable"
	if e.Retryable {
		class = "retryable"
	}
	return fmt.Sprintf("record store error (%s): %v", class, e.Cause)
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewRetryableError marks a transient store failure (timeouts, 5xx)
func NewRetryableError(cause error) error {
	return &Error{Retryable: true, Cause: cause}
}

// NewNonRetryableError marks a permanent store failure (4xx, missing subject)
func NewNonRetryableError(cause error) error {
	return &Error{Retryable: false, Cause: cause}
}

// IsRetryable reports whether the error may succeed on retry.
// Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Retryable
	}
	return false
}
