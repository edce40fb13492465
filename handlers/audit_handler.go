package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/models"
	"github.com/carelane/governor/utils"
)

// QueryAuditEventsHandler retrieves audit events matching the query filters,
// ordered by timestamp. Supported filters: command_id, approval_id,
// subject_id, actor, from, to (RFC 3339), limit, offset.
func QueryAuditEventsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := auditFilterFromQuery(r)
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}

		events, err := deps.AuditLogger.Query(r.Context(), filter)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		_ = utils.WriteOK(w, map[string]interface{}{
			"events": events,
			"count":  len(events),
		})
	}
}

// auditFilterFromQuery builds an AuditFilter from URL query parameters
func auditFilterFromQuery(r *http.Request) (models.AuditFilter, error) {
	q := r.URL.Query()
	filter := models.AuditFilter{
		SubjectID: q.Get("subject_id"),
		Actor:     q.Get("actor"),
		Limit:     queryInt(r, "limit", 100),
		Offset:    queryInt(r, "offset", 0),
	}

	if raw := q.Get("command_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, &queryError{"command_id must be a UUID"}
		}
		filter.CommandID = &id
	}
	if raw := q.Get("approval_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, &queryError{"approval_id must be a UUID"}
		}
		filter.ApprovalID = &id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &queryError{"from must be an RFC 3339 timestamp"}
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &queryError{"to must be an RFC 3339 timestamp"}
		}
		filter.To = &t
	}

	return filter, nil
}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }
