package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/carelane/governor/config"
	"github.com/carelane/governor/models"
)

func testMutation() Mutation {
	return Mutation{
		CommandID: uuid.New(),
		Kind:      models.CommandKindCreateNoteDraft,
		SubjectID: "patient-007",
		Payload: &models.CreateNoteDraftPayload{
			EncounterID: "enc-31",
			Title:       "Follow-up",
			Body:        "...",
		},
		Provenance: Provenance{
			SourceModel: "scribe-v2",
			Confidence:  0.9,
		},
	}
}

func newClient(baseURL string) *HTTPClient {
	return NewHTTPClient(config.RecordStoreConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestHTTPClient_Apply(t *testing.T) {
	var received Mutation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/mutations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]string{"resource_id": "resource-1"})
	}))
	defer server.Close()

	mutation := testMutation()
	resourceID, err := newClient(server.URL).Apply(context.Background(), mutation)
	require.NoError(t, err)
	assert.Equal(t, "resource-1", resourceID)
	assert.Equal(t, mutation.CommandID, received.CommandID)
	assert.Equal(t, "scribe-v2", received.Provenance.SourceModel)
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"server error is retryable", http.StatusInternalServerError, `{"error":"db down"}`, true},
		{"throttling is retryable", http.StatusTooManyRequests, `{"error":"slow down"}`, true},
		{"client error is not retryable", http.StatusUnprocessableEntity, `{"error":"unknown subject"}`, false},
		{"missing resource id is not retryable", http.StatusOK, `{}`, false},
		{"malformed response is not retryable", http.StatusOK, `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL).Apply(context.Background(), testMutation())
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestHTTPClient_NetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := newClient(server.URL).Apply(context.Background(), testMutation())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(errors.New("timeout"))))
	assert.False(t, IsRetryable(NewNonRetryableError(errors.New("rejected"))))
	assert.False(t, IsRetryable(errors.New("unclassified")), "unclassified errors must not be retried")
	assert.False(t, IsRetryable(nil))
}
