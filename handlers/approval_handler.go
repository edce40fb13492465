package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/middleware"
	"github.com/carelane/governor/models"
	"github.com/carelane/governor/utils"
)

// resolveApprovalRequest is the body of a resolution call. The actor comes
// from the verified token, never from the body.
type resolveApprovalRequest struct {
	Decision models.ApprovalDecision `json:"decision"`
	Note     string                  `json:"note,omitempty"`
}

// resolveApprovalResponse reports the record after the decision, plus the
// execution outcome when the approval triggered one.
type resolveApprovalResponse struct {
	Approval *models.ApprovalSummary `json:"approval"`
	Outcome  interface{}             `json:"outcome,omitempty"`
}

// ResolveApprovalHandler applies a human approve/reject decision to a pending
// approval record.
func ResolveApprovalHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "approvalID"))
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid approval id", nil)
			return
		}

		actor := middleware.GetActorFromContext(r.Context())
		if actor == "" {
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		var req resolveApprovalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "Invalid request body", nil)
			return
		}

		record, outcome, err := deps.Pipeline.ResolveApproval(r.Context(), id, req.Decision, actor, req.Note)
		if err != nil {
			// An approved record whose execution failed is still approved;
			// report the record alongside the gateway failure.
			if record != nil && record.Status == models.ApprovalStatusApproved {
				deps.Logger.Error("execution failed after approval",
					zap.String("approval_id", id.String()),
					zap.Error(err))
				_ = utils.WriteBadGateway(w, "Approval recorded but execution failed", map[string]interface{}{
					"approval": record.Summary(),
					"cause":    err.Error(),
				})
				return
			}
			HandleServiceError(w, err, deps.Logger)
			return
		}

		resp := resolveApprovalResponse{Approval: record.Summary()}
		if outcome != nil {
			resp.Outcome = outcome
		}
		_ = utils.WriteOK(w, resp)
	}
}

// GetApprovalHandler retrieves a single approval record
func GetApprovalHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "approvalID"))
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid approval id", nil)
			return
		}

		record, err := deps.ApprovalService.Get(r.Context(), id)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, record.Summary())
	}
}

// ListApprovalsHandler lists approval records by status, oldest first.
// Defaults to the pending queue.
func ListApprovalsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := models.ApprovalStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = models.ApprovalStatusPending
		}
		switch status {
		case models.ApprovalStatusPending, models.ApprovalStatusApproved,
			models.ApprovalStatusRejected, models.ApprovalStatusExpired:
		default:
			_ = utils.WriteBadRequest(w, "Invalid status filter", nil)
			return
		}

		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)

		records, err := deps.ApprovalService.ListByStatus(r.Context(), status, limit, offset)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		summaries := make([]*models.ApprovalSummary, 0, len(records))
		for _, record := range records {
			summaries = append(summaries, record.Summary())
		}
		_ = utils.WriteOK(w, map[string]interface{}{
			"approvals": summaries,
			"count":     len(summaries),
		})
	}
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return def
	}
	return value
}
