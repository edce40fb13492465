package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommandKind represents the type of mutation an agent proposes
type CommandKind string

const (
	CommandKindFlagAbnormalResult      CommandKind = "flag_abnormal_result"
	CommandKindCreateNoteDraft         CommandKind = "create_note_draft"
	CommandKindProposeProblemUpdate    CommandKind = "propose_problem_update"
	CommandKindSuggestBillingCodes     CommandKind = "suggest_billing_codes"
	CommandKindSuggestMedicationChange CommandKind = "suggest_medication_change"
)

// AllCommandKinds lists every supported command kind. The validator and the
// executor dispatch over this set; a kind outside it is a validation error.
var AllCommandKinds = []CommandKind{
	CommandKindFlagAbnormalResult,
	CommandKindCreateNoteDraft,
	CommandKindProposeProblemUpdate,
	CommandKindSuggestBillingCodes,
	CommandKindSuggestMedicationChange,
}

// IsValid reports whether the kind is a known, supported variant
func (k CommandKind) IsValid() bool {
	for _, known := range AllCommandKinds {
		if k == known {
			return true
		}
	}
	return false
}

// CommandPayload is the kind-specific portion of a command. Exactly one
// concrete payload type exists per CommandKind; decoding switches on the kind
// so an unknown kind can never produce a half-typed payload.
type CommandPayload interface {
	PayloadKind() CommandKind
}

// FlagAbnormalResultPayload flags a lab/diagnostic result for clinician review
type FlagAbnormalResultPayload struct {
	ResultID string `json:"result_id" validate:"required"`
	Severity string `json:"severity" validate:"required,oneof=low moderate high critical"`
	Reason   string `json:"reason" validate:"required"`
}

// PayloadKind implements CommandPayload
func (FlagAbnormalResultPayload) PayloadKind() CommandKind { return CommandKindFlagAbnormalResult }

// CreateNoteDraftPayload drafts a clinical note attached to an encounter
type CreateNoteDraftPayload struct {
	EncounterID string `json:"encounter_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=256"`
	Body        string `json:"body" validate:"required"`
}

// PayloadKind implements CommandPayload
func (CreateNoteDraftPayload) PayloadKind() CommandKind { return CommandKindCreateNoteDraft }

// ProposeProblemUpdatePayload suggests a status change on a problem-list entry
type ProposeProblemUpdatePayload struct {
	ProblemID      string `json:"problem_id" validate:"required"`
	ProposedStatus string `json:"proposed_status" validate:"required,oneof=active resolved inactive"`
	Rationale      string `json:"rationale" validate:"required"`
}

// PayloadKind implements CommandPayload
func (ProposeProblemUpdatePayload) PayloadKind() CommandKind { return CommandKindProposeProblemUpdate }

// BillingCode is a single suggested billing code with its description
type BillingCode struct {
	Code        string `json:"code" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// SuggestBillingCodesPayload recommends billing codes for an encounter
type SuggestBillingCodesPayload struct {
	EncounterID string        `json:"encounter_id" validate:"required"`
	Codes       []BillingCode `json:"codes" validate:"required,min=1,max=10,dive"`
}

// PayloadKind implements CommandPayload
func (SuggestBillingCodesPayload) PayloadKind() CommandKind { return CommandKindSuggestBillingCodes }

// SuggestMedicationChangePayload proposes a change to an active medication
type SuggestMedicationChangePayload struct {
	MedicationID string `json:"medication_id" validate:"required"`
	ChangeType   string `json:"change_type" validate:"required,oneof=dose_increase dose_decrease discontinue substitute"`
	Detail       string `json:"detail" validate:"required"`
}

// PayloadKind implements CommandPayload
func (SuggestMedicationChangePayload) PayloadKind() CommandKind {
	return CommandKindSuggestMedicationChange
}

// Command is a validated candidate mutation proposed by an agent.
// It is immutable once it enters the governance pipeline.
type Command struct {
	ID               uuid.UUID      `json:"id"`
	Kind             CommandKind    `json:"kind"`
	Confidence       float64        `json:"confidence"`
	RequiresApproval bool           `json:"requires_approval"`
	SourceModel      string         `json:"source_model"`
	SubjectID        string         `json:"subject_id"`
	CreatedAt        time.Time      `json:"created_at"`
	Payload          CommandPayload `json:"payload"`
}

// NewPayloadForKind returns an empty payload value for the given kind,
// suitable as an unmarshal target. Returns an error for unknown kinds.
func NewPayloadForKind(kind CommandKind) (CommandPayload, error) {
	switch kind {
	case CommandKindFlagAbnormalResult:
		return &FlagAbnormalResultPayload{}, nil
	case CommandKindCreateNoteDraft:
		return &CreateNoteDraftPayload{}, nil
	case CommandKindProposeProblemUpdate:
		return &ProposeProblemUpdatePayload{}, nil
	case CommandKindSuggestBillingCodes:
		return &SuggestBillingCodesPayload{}, nil
	case CommandKindSuggestMedicationChange:
		return &SuggestMedicationChangePayload{}, nil
	default:
		return nil, fmt.Errorf("unknown command kind: %q", kind)
	}
}

// commandEnvelope is the wire shape of a command; Payload stays raw until the
// kind is known.
type commandEnvelope struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	Confidence       float64         `json:"confidence"`
	RequiresApproval bool            `json:"requires_approval"`
	SourceModel      string          `json:"source_model"`
	SubjectID        string          `json:"subject_id"`
	CreatedAt        time.Time       `json:"created_at"`
	Payload          json.RawMessage `json:"payload"`
}

// MarshalJSON flattens the typed payload back into the wire envelope
func (c Command) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(commandEnvelope{
		ID:               c.ID.String(),
		Kind:             string(c.Kind),
		Confidence:       c.Confidence,
		RequiresApproval: c.RequiresApproval,
		SourceModel:      c.SourceModel,
		SubjectID:        c.SubjectID,
		CreatedAt:        c.CreatedAt,
		Payload:          raw,
	})
}

// UnmarshalJSON decodes the envelope and then the kind-specific payload.
// Malformed input yields an error, never a panic.
func (c *Command) UnmarshalJSON(data []byte) error {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	kind := CommandKind(env.Kind)
	payload, err := NewPayloadForKind(kind)
	if err != nil {
		return err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, payload); err != nil {
			return fmt.Errorf("invalid payload for kind %q: %w", kind, err)
		}
	}

	id := uuid.Nil
	if env.ID != "" {
		parsed, err := uuid.Parse(env.ID)
		if err != nil {
			return fmt.Errorf("invalid command id: %w", err)
		}
		id = parsed
	}

	c.ID = id
	c.Kind = kind
	c.Confidence = env.Confidence
	c.RequiresApproval = env.RequiresApproval
	c.SourceModel = env.SourceModel
	c.SubjectID = env.SubjectID
	c.CreatedAt = env.CreatedAt
	c.Payload = payload
	return nil
}
