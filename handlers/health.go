package handlers

import (
	"net/http"
	"time"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/utils"
)

// HealthHandler reports process liveness
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadyHandler reports readiness: the service is ready once its database
// dependency answers.
func ReadyHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.HealthCheck(r.Context()); err != nil {
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"cause":  err.Error(),
			})
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
