package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus represents the lifecycle state of an approval record
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusExpired  ApprovalStatus = "expired"
)

// IsTerminal reports whether the status admits no further transitions
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected || s == ApprovalStatusExpired
}

// ApprovalDecision is a human resolution choice on a pending record
type ApprovalDecision string

const (
	DecisionApprove ApprovalDecision = "approve"
	DecisionReject  ApprovalDecision = "reject"
)

// SweepActor is recorded as the resolver on records closed by expiry
const SweepActor = "system:sweep"

// ApprovalRecord tracks the human-review lifecycle of a command routed to
// needs-approval. The embedded command snapshot, not the original candidate,
// is the source of truth for execution.
type ApprovalRecord struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CommandID          uuid.UUID       `json:"command_id" db:"command_id"`
	CommandKind        CommandKind     `json:"command_kind" db:"command_kind"`
	SubjectID          string          `json:"subject_id" db:"subject_id"`
	CommandSnapshot    json.RawMessage `json:"command_snapshot" db:"command_snapshot"`
	Status             ApprovalStatus  `json:"status" db:"status"`
	ApproversRequired  int             `json:"approvers_required" db:"approvers_required"`
	ApprovedBy         []string        `json:"approved_by" db:"approved_by"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at" db:"expires_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy         *string         `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolutionNote     *string         `json:"resolution_note,omitempty" db:"resolution_note"`
	ExecutedResourceID *string         `json:"executed_resource_id,omitempty" db:"executed_resource_id"`
}

// TableName returns the table name for the ApprovalRecord model
func (ApprovalRecord) TableName() string {
	return "approval_records"
}

// NewApprovalRecord creates a pending record for a validated command.
// snapshot must be the serialized form of the already-validated command.
func NewApprovalRecord(cmd *Command, snapshot json.RawMessage, approversRequired int, ttl time.Duration) *ApprovalRecord {
	now := time.Now().UTC()
	if approversRequired < 1 {
		approversRequired = 1
	}
	return &ApprovalRecord{
		ID:                uuid.New(),
		CommandID:         cmd.ID,
		CommandKind:       cmd.Kind,
		SubjectID:         cmd.SubjectID,
		CommandSnapshot:   snapshot,
		Status:            ApprovalStatusPending,
		ApproversRequired: approversRequired,
		ApprovedBy:        []string{},
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
	}
}

// Command decodes the immutable snapshot back into a Command
func (r *ApprovalRecord) Command() (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(r.CommandSnapshot, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// HasApprover reports whether actor already approved this record
func (r *ApprovalRecord) HasApprover(actor string) bool {
	for _, a := range r.ApprovedBy {
		if a == actor {
			return true
		}
	}
	return false
}

// ApprovalsOutstanding returns how many distinct approvals are still needed
func (r *ApprovalRecord) ApprovalsOutstanding() int {
	remaining := r.ApproversRequired - len(r.ApprovedBy)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ApprovalSummary is the external, task-like representation of a record.
// Consumers must treat status transitions as the only source of truth for
// whether execution occurred.
type ApprovalSummary struct {
	ID                 uuid.UUID       `json:"id"`
	Status             ApprovalStatus  `json:"status"`
	CommandID          uuid.UUID       `json:"command_id"`
	CommandKind        CommandKind     `json:"command_kind"`
	SubjectID          string          `json:"subject_id"`
	Command            json.RawMessage `json:"command"`
	ApproversRequired  int             `json:"approvers_required"`
	ApprovedBy         []string        `json:"approved_by"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy         *string         `json:"resolved_by,omitempty"`
	ResolutionNote     *string         `json:"resolution_note,omitempty"`
	ExecutedResourceID *string         `json:"executed_resource_id,omitempty"`
}

// Summary builds the external representation
func (r *ApprovalRecord) Summary() *ApprovalSummary {
	return &ApprovalSummary{
		ID:                 r.ID,
		Status:             r.Status,
		CommandID:          r.CommandID,
		CommandKind:        r.CommandKind,
		SubjectID:          r.SubjectID,
		Command:            r.CommandSnapshot,
		ApproversRequired:  r.ApproversRequired,
		ApprovedBy:         r.ApprovedBy,
		CreatedAt:          r.CreatedAt,
		ExpiresAt:          r.ExpiresAt,
		ResolvedAt:         r.ResolvedAt,
		ResolvedBy:         r.ResolvedBy,
		ResolutionNote:     r.ResolutionNote,
		ExecutedResourceID: r.ExecutedResourceID,
	}
}
