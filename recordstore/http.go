package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/carelane/governor/config"
)

// HTTPClient talks to the record store over its JSON mutation endpoint
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a record store client from configuration
func NewHTTPClient(cfg config.RecordStoreConfig, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// applyResponse is the store's reply to a mutation
type applyResponse struct {
	ResourceID string `json:"resource_id"`
	Error      string `json:"error,omitempty"`
}

// Apply performs the mutation and returns the created resource id
func (c *HTTPClient) Apply(ctx context.Context, mutation Mutation) (string, error) {
	body, err := json.Marshal(mutation)
	if err != nil {
		return "", NewNonRetryableError(fmt.Errorf("failed to encode mutation: %w", err))
	}

	url := c.baseURL + "/mutations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", NewNonRetryableError(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are worth retrying
		return "", NewRetryableError(fmt.Errorf("record store request failed: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewRetryableError(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var applied applyResponse
		if err := json.Unmarshal(payload, &applied); err != nil {
			return "", NewNonRetryableError(fmt.Errorf("malformed store response: %w", err))
		}
		if applied.ResourceID == "" {
			return "", NewNonRetryableError(fmt.Errorf("store response missing resource id"))
		}
		c.logger.Debug("mutation applied",
			zap.String("command_id", mutation.CommandID.String()),
			zap.String("resource_id", applied.ResourceID))
		return applied.ResourceID, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", NewRetryableError(fmt.Errorf("record store returned %d: %s", resp.StatusCode, string(payload)))

	default:
		// 4xx means the mutation itself is unacceptable (e.g. subject gone)
		return "", NewNonRetryableError(fmt.Errorf("record store rejected mutation with %d: %s", resp.StatusCode, string(payload)))
	}
}
