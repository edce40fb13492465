package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the pipeline transition being recorded
type AuditEventType string

const (
	AuditEventReceived         AuditEventType = "received"
	AuditEventBlocked          AuditEventType = "blocked"
	AuditEventQueued           AuditEventType = "queued"
	AuditEventApprovalProgress AuditEventType = "approval_progress"
	AuditEventApproved         AuditEventType = "approved"
	AuditEventRejected         AuditEventType = "rejected"
	AuditEventApprovalTimeout  AuditEventType = "approval_timeout"
	AuditEventExecuted         AuditEventType = "executed"
	AuditEventExecutionFailed  AuditEventType = "execution_failed"
)

// AuditEvent is one immutable entry in the append-only audit trail.
// Events are never updated or deleted.
type AuditEvent struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	Timestamp  time.Time         `json:"timestamp" db:"timestamp"`
	EventType  AuditEventType    `json:"event_type" db:"event_type"`
	CommandID  uuid.UUID         `json:"command_id" db:"command_id"`
	ApprovalID *uuid.UUID        `json:"approval_id,omitempty" db:"approval_id"`
	SubjectID  string            `json:"subject_id" db:"subject_id"`
	Actor      *string           `json:"actor,omitempty" db:"actor"`
	Outcome    string            `json:"outcome" db:"outcome"`
	Details    map[string]string `json:"details" db:"details"`
}

// TableName returns the table name for the AuditEvent model
func (AuditEvent) TableName() string {
	return "audit_events"
}

// NewAuditEvent creates a new audit event for a command transition
func NewAuditEvent(eventType AuditEventType, commandID uuid.UUID, subjectID, outcome string) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		CommandID: commandID,
		SubjectID: subjectID,
		Outcome:   outcome,
		Details:   make(map[string]string),
	}
}

// WithApproval sets the approval record id
func (e *AuditEvent) WithApproval(approvalID uuid.UUID) *AuditEvent {
	e.ApprovalID = &approvalID
	return e
}

// WithActor sets the acting principal (human resolver or system sweeper)
func (e *AuditEvent) WithActor(actor string) *AuditEvent {
	e.Actor = &actor
	return e
}

// WithDetail adds one detail entry
func (e *AuditEvent) WithDetail(key, value string) *AuditEvent {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// AuditFilter narrows an audit query. Zero-valued fields are ignored.
type AuditFilter struct {
	CommandID  *uuid.UUID
	ApprovalID *uuid.UUID
	SubjectID  string
	Actor      string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
