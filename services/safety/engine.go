package safety

import (
	"time"

	"github.com/carelane/governor/models"
)

// Decision is the routing verdict for a classified command
type Decision string

const (
	DecisionBlocked       Decision = "blocked"
	DecisionAutoExecute   Decision = "auto_execute"
	DecisionNeedsApproval Decision = "needs_approval"
)

// Block reasons, stable identifiers surfaced in audit events
const (
	ReasonLowConfidence   = "low_confidence"
	ReasonKindBlocked     = "kind_blocked"
	ReasonRestrictedHours = "restricted_hours"
)

// Routing is the result of classifying a command against a policy
type Routing struct {
	Decision Decision
	// Reason is set for blocked routings
	Reason string
	// RuleName identifies the rule that produced the routing
	RuleName string
	// ApproversRequired is set for needs-approval routings (>= 1)
	ApproversRequired int
}

// Classify evaluates a command against a policy snapshot. It is a pure
// function of (command, policy, now): deterministic, no side effects.
// Rules are evaluated in order; the first match wins.
func Classify(cmd *models.Command, policy *models.SafetyPolicy, now time.Time) Routing {
	// 1. Confidence floor
	if cmd.Confidence < policy.MinConfidence {
		return Routing{
			Decision: DecisionBlocked,
			Reason:   ReasonLowConfidence,
			RuleName: "min_confidence",
		}
	}

	// 2. Unconditionally blocked kinds
	if policy.IsKindBlocked(cmd.Kind) {
		return Routing{
			Decision: DecisionBlocked,
			Reason:   ReasonKindBlocked,
			RuleName: "blocked_kinds",
		}
	}

	// 3. Restricted hours, unless the kind is explicitly exempt.
	// A malformed window never blocks; the policy validates its window on
	// load, so an error here means the check is skipped, not failed.
	if policy.RestrictedHours != nil && !policy.RestrictedHours.IsExempt(cmd.Kind) {
		if inside, err := policy.RestrictedHours.Contains(now); err == nil && inside {
			return Routing{
				Decision: DecisionBlocked,
				Reason:   ReasonRestrictedHours,
				RuleName: "restricted_hours",
			}
		}
	}

	// 4. Human sign-off required
	if cmd.RequiresApproval || policy.RequiresDualApproval(cmd.Kind) {
		approvers := 1
		if policy.RequiresDualApproval(cmd.Kind) {
			approvers = 2
		}
		return Routing{
			Decision:          DecisionNeedsApproval,
			RuleName:          "requires_approval",
			ApproversRequired: approvers,
		}
	}

	// 5. Safe to execute without a human in the loop
	return Routing{
		Decision: DecisionAutoExecute,
		RuleName: "auto_execute",
	}
}
