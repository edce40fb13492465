package safety

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/carelane/governor/models"
)

// policyFile is the YAML shape of the safety policy. ApprovalTTL is a Go
// duration string ("72h") so operators never write nanosecond integers.
type policyFile struct {
	MinConfidence     float64              `yaml:"min_confidence"`
	BlockedKinds      []models.CommandKind `yaml:"blocked_kinds"`
	DualApprovalKinds []models.CommandKind `yaml:"dual_approval_kinds"`
	RestrictedHours   *models.HoursWindow  `yaml:"restricted_hours"`
	ApprovalTTL       string               `yaml:"approval_ttl"`
}

// Provider holds the current safety policy snapshot. Evaluations take a
// snapshot value, so a reload swaps the policy between evaluations, never
// mid-evaluation.
type Provider struct {
	mu     sync.RWMutex
	policy *models.SafetyPolicy
	path   string
	logger *zap.Logger
}

// NewProvider creates a provider. An empty path means the built-in default
// policy with no file backing (Reload becomes a no-op).
func NewProvider(path string, logger *zap.Logger) (*Provider, error) {
	p := &Provider{
		path:   path,
		logger: logger,
	}
	if path == "" {
		p.policy = models.DefaultSafetyPolicy()
		logger.Info("safety policy provider using built-in defaults")
		return p, nil
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Current returns the active policy snapshot
func (p *Provider) Current() *models.SafetyPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.policy
}

// Reload re-reads the policy file and atomically swaps the snapshot.
// A policy that fails validation is rejected and the previous snapshot stays
// active.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}

	policy, err := loadPolicyFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.policy = policy
	p.mu.Unlock()

	p.logger.Info("safety policy loaded",
		zap.String("path", p.path),
		zap.Float64("min_confidence", policy.MinConfidence),
		zap.Int("blocked_kinds", len(policy.BlockedKinds)),
		zap.Int("dual_approval_kinds", len(policy.DualApprovalKinds)),
		zap.Duration("approval_ttl", policy.ApprovalTTL))
	return nil
}

func loadPolicyFile(path string) (*models.SafetyPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	ttl := 72 * time.Hour
	if file.ApprovalTTL != "" {
		parsed, err := time.ParseDuration(file.ApprovalTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid approval_ttl: %w", err)
		}
		ttl = parsed
	}

	policy := &models.SafetyPolicy{
		MinConfidence:     file.MinConfidence,
		BlockedKinds:      file.BlockedKinds,
		DualApprovalKinds: file.DualApprovalKinds,
		RestrictedHours:   file.RestrictedHours,
		ApprovalTTL:       ttl,
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("policy file rejected: %w", err)
	}
	return policy, nil
}
