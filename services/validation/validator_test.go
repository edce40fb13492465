package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelane/governor/models"
	"github.com/carelane/governor/services"
)

func validRaw() string {
	return `{
		"kind": "flag_abnormal_result",
		"confidence": 0.92,
		"source_model": "triage-v3",
		"subject_id": "patient-001",
		"payload": {
			"result_id": "lab-778",
			"severity": "critical",
			"reason": "potassium 6.8 mmol/L"
		}
	}`
}

func TestValidate_ValidCommand(t *testing.T) {
	v := NewValidator()

	cmd, err := v.Validate([]byte(validRaw()))
	require.NoError(t, err)

	assert.Equal(t, models.CommandKindFlagAbnormalResult, cmd.Kind)
	assert.Equal(t, 0.92, cmd.Confidence)
	assert.Equal(t, "patient-001", cmd.SubjectID)
	assert.NotEqual(t, uuid.Nil, cmd.ID, "id is generated when absent")
	assert.False(t, cmd.CreatedAt.IsZero())

	payload, ok := cmd.Payload.(*models.FlagAbnormalResultPayload)
	require.True(t, ok)
	assert.Equal(t, "critical", payload.Severity)
}

func TestValidate_PreservesProvidedID(t *testing.T) {
	v := NewValidator()
	id := uuid.New()

	raw := `{
		"id": "` + id.String() + `",
		"kind": "create_note_draft",
		"confidence": 0.8,
		"source_model": "scribe-v2",
		"subject_id": "patient-002",
		"payload": {"encounter_id": "enc-1", "title": "Visit summary", "body": "..."}
	}`

	cmd, err := v.Validate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, id, cmd.ID)
}

func TestValidate_MalformedInput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", `{{{`, "body"},
		{"json but not object", `"hello"`, "body"},
		{"missing kind", `{"confidence":0.9,"source_model":"m","subject_id":"s","payload":{}}`, "kind"},
		{"unknown kind", `{"kind":"order_mri","confidence":0.9,"source_model":"m","subject_id":"s","payload":{}}`, "kind"},
		{"missing confidence", `{"kind":"create_note_draft","source_model":"m","subject_id":"s","payload":{}}`, "confidence"},
		{"confidence above one", `{"kind":"create_note_draft","confidence":1.2,"source_model":"m","subject_id":"s","payload":{}}`, "confidence"},
		{"negative confidence", `{"kind":"create_note_draft","confidence":-0.2,"source_model":"m","subject_id":"s","payload":{}}`, "confidence"},
		{"wrong confidence type", `{"kind":"create_note_draft","confidence":"high","source_model":"m","subject_id":"s","payload":{}}`, "body"},
		{"missing source model", `{"kind":"create_note_draft","confidence":0.9,"subject_id":"s","payload":{}}`, "source_model"},
		{"missing subject", `{"kind":"create_note_draft","confidence":0.9,"source_model":"m","payload":{}}`, "subject_id"},
		{"missing payload", `{"kind":"create_note_draft","confidence":0.9,"source_model":"m","subject_id":"s"}`, "payload"},
		{"wrong payload type", `{"kind":"create_note_draft","confidence":0.9,"source_model":"m","subject_id":"s","payload":[1,2]}`, "payload"},
		{"bad id", `{"id":"nope","kind":"create_note_draft","confidence":0.9,"source_model":"m","subject_id":"s","payload":{"encounter_id":"e","title":"t","body":"b"}}`, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err), "expected validation error, got %v", err)
			details := services.GetErrorDetails(err)
			assert.Equal(t, tt.field, details["field"])
		})
	}
}

func TestValidate_PayloadFieldConstraints(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{
			"missing required payload field",
			`{"kind":"flag_abnormal_result","confidence":0.9,"source_model":"m","subject_id":"s",
			  "payload":{"severity":"high","reason":"r"}}`,
			"payload.resultid",
		},
		{
			"severity outside enum",
			`{"kind":"flag_abnormal_result","confidence":0.9,"source_model":"m","subject_id":"s",
			  "payload":{"result_id":"lab-1","severity":"catastrophic","reason":"r"}}`,
			"payload.severity",
		},
		{
			"empty billing code list",
			`{"kind":"suggest_billing_codes","confidence":0.9,"source_model":"m","subject_id":"s",
			  "payload":{"encounter_id":"enc-1","codes":[]}}`,
			"payload.codes",
		},
		{
			"unknown medication change type",
			`{"kind":"suggest_medication_change","confidence":0.9,"source_model":"m","subject_id":"s",
			  "payload":{"medication_id":"med-1","change_type":"double_it","detail":"d"}}`,
			"payload.changetype",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			details := services.GetErrorDetails(err)
			assert.Equal(t, tt.field, details["field"])
		})
	}
}

func TestValidate_NeverPanics(t *testing.T) {
	v := NewValidator()

	inputs := []string{
		"", "null", "[]", "0", `{"payload":null}`,
		`{"kind":null}`, `{"kind":"flag_abnormal_result","confidence":null}`,
	}
	for _, raw := range inputs {
		assert.NotPanics(t, func() {
			_, _ = v.Validate([]byte(raw))
		}, "input %q", raw)
	}
}
