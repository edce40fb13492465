package models

import (
	"fmt"
	"time"
)

// HoursWindow is a daily time window during which non-exempt commands are
// blocked. Windows may cross midnight (e.g. 22:00–06:00).
type HoursWindow struct {
	Start       string        `json:"start" yaml:"start"` // "HH:MM", 24h clock
	End         string        `json:"end" yaml:"end"`
	ExemptKinds []CommandKind `json:"exempt_kinds" yaml:"exempt_kinds"`
}

// Contains reports whether t (in its own location) falls within the window
func (w *HoursWindow) Contains(t time.Time) (bool, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return false, fmt.Errorf("invalid window start: %w", err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false, fmt.Errorf("invalid window end: %w", err)
	}

	minutes := t.Hour()*60 + t.Minute()
	if start <= end {
		return minutes >= start && minutes < end, nil
	}
	// Crosses midnight
	return minutes >= start || minutes < end, nil
}

// IsExempt reports whether the kind may execute inside the window
func (w *HoursWindow) IsExempt(kind CommandKind) bool {
	for _, k := range w.ExemptKinds {
		if k == kind {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %q", s)
	}
	return h*60 + m, nil
}

// SafetyPolicy is the configured rule set used to classify commands.
// It is a value object: immutable per evaluation, hot-reloadable between
// evaluations but never mid-evaluation.
type SafetyPolicy struct {
	MinConfidence     float64       `json:"min_confidence" yaml:"min_confidence"`
	BlockedKinds      []CommandKind `json:"blocked_kinds" yaml:"blocked_kinds"`
	DualApprovalKinds []CommandKind `json:"dual_approval_kinds" yaml:"dual_approval_kinds"`
	RestrictedHours   *HoursWindow  `json:"restricted_hours,omitempty" yaml:"restricted_hours,omitempty"`
	ApprovalTTL       time.Duration `json:"approval_ttl" yaml:"approval_ttl"`
}

// IsKindBlocked reports whether the kind is unconditionally blocked
func (p *SafetyPolicy) IsKindBlocked(kind CommandKind) bool {
	for _, k := range p.BlockedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// RequiresDualApproval reports whether the kind needs more than one approver
func (p *SafetyPolicy) RequiresDualApproval(kind CommandKind) bool {
	for _, k := range p.DualApprovalKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Validate checks the policy for internal consistency
func (p *SafetyPolicy) Validate() error {
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", p.MinConfidence)
	}
	if p.ApprovalTTL <= 0 {
		return fmt.Errorf("approval_ttl must be positive, got %v", p.ApprovalTTL)
	}
	for _, k := range p.BlockedKinds {
		if !k.IsValid() {
			return fmt.Errorf("unknown blocked kind: %q", k)
		}
	}
	for _, k := range p.DualApprovalKinds {
		if !k.IsValid() {
			return fmt.Errorf("unknown dual approval kind: %q", k)
		}
	}
	if p.RestrictedHours != nil {
		if _, err := p.RestrictedHours.Contains(time.Now()); err != nil {
			return err
		}
		for _, k := range p.RestrictedHours.ExemptKinds {
			if !k.IsValid() {
				return fmt.Errorf("unknown exempt kind: %q", k)
			}
		}
	}
	return nil
}

// DefaultSafetyPolicy returns a conservative baseline used when no policy
// file is configured.
func DefaultSafetyPolicy() *SafetyPolicy {
	return &SafetyPolicy{
		MinConfidence:     0.5,
		BlockedKinds:      nil,
		DualApprovalKinds: []CommandKind{CommandKindSuggestMedicationChange},
		RestrictedHours: &HoursWindow{
			Start:       "22:00",
			End:         "06:00",
			ExemptKinds: []CommandKind{CommandKindFlagAbnormalResult},
		},
		ApprovalTTL: 72 * time.Hour,
	}
}
