package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/services"
)

// Validator turns a raw candidate command into a validated Command.
// It is pure: no side effects, and malformed input of any shape yields a
// validation error, never a panic.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new command validator
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// rawEnvelope mirrors the wire shape with everything optional so missing or
// wrong-typed fields surface as field errors rather than decode panics.
type rawEnvelope struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	Confidence       *float64        `json:"confidence"`
	RequiresApproval bool            `json:"requires_approval"`
	SourceModel      string          `json:"source_model"`
	SubjectID        string          `json:"subject_id"`
	CreatedAt        time.Time       `json:"created_at"`
	Payload          json.RawMessage `json:"payload"`
}

// Validate parses and validates a raw candidate command
func (v *Validator) Validate(raw []byte) (*models.Command, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, services.NewValidationError("body", fmt.Sprintf("malformed JSON: %v", err))
	}

	kind := models.CommandKind(env.Kind)
	if env.Kind == "" {
		return nil, services.NewValidationError("kind", "is required")
	}
	if !kind.IsValid() {
		return nil, services.NewValidationError("kind", fmt.Sprintf("unsupported command kind %q", env.Kind))
	}

	if env.Confidence == nil {
		return nil, services.NewValidationError("confidence", "is required")
	}
	if *env.Confidence < 0 || *env.Confidence > 1 {
		return nil, services.NewValidationError("confidence",
			fmt.Sprintf("must be within [0,1], got %v", *env.Confidence))
	}

	if env.SourceModel == "" {
		return nil, services.NewValidationError("source_model", "is required")
	}
	if env.SubjectID == "" {
		return nil, services.NewValidationError("subject_id", "is required")
	}

	if len(env.Payload) == 0 {
		return nil, services.NewValidationError("payload", "is required")
	}
	payload, err := models.NewPayloadForKind(kind)
	if err != nil {
		return nil, services.NewValidationError("kind", err.Error())
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, services.NewValidationError("payload", fmt.Sprintf("malformed payload: %v", err))
	}
	if err := v.validate.Struct(payload); err != nil {
		return nil, translateFieldErrors(err)
	}

	id := uuid.Nil
	if env.ID != "" {
		parsed, err := uuid.Parse(env.ID)
		if err != nil {
			return nil, services.NewValidationError("id", "must be a valid UUID")
		}
		id = parsed
	} else {
		id = uuid.New()
	}

	createdAt := env.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &models.Command{
		ID:               id,
		Kind:             kind,
		Confidence:       *env.Confidence,
		RequiresApproval: env.RequiresApproval,
		SourceModel:      env.SourceModel,
		SubjectID:        env.SubjectID,
		CreatedAt:        createdAt,
		Payload:          payload,
	}, nil
}

// translateFieldErrors converts validator tag failures into a field/reason error
func translateFieldErrors(err error) error {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := "payload." + strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return services.NewValidationError(field, "is required")
		case "oneof":
			return services.NewValidationError(field, fmt.Sprintf("must be one of: %s", fe.Param()))
		case "min":
			return services.NewValidationError(field, fmt.Sprintf("must be at least %s", fe.Param()))
		case "max":
			return services.NewValidationError(field, fmt.Sprintf("must be at most %s", fe.Param()))
		default:
			return services.NewValidationError(field, fmt.Sprintf("failed %q constraint", fe.Tag()))
		}
	}
	return services.NewValidationError("payload", err.Error())
}
