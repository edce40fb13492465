package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/services/pipeline"
	"github.com/carelane/governor/utils"
)

// maxCommandBytes bounds the accepted candidate command size
const maxCommandBytes = 1 << 20

// SubmitCommandHandler accepts a candidate command from an AI agent and runs
// it through the governance pipeline. The response carries the pipeline
// outcome: executed, blocked, or queued for human approval.
func SubmitCommandHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
		if err != nil {
			_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
			return
		}

		outcome, err := deps.Pipeline.Submit(r.Context(), body)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		switch outcome.Kind {
		case pipeline.OutcomeExecuted:
			_ = utils.WriteCreated(w, outcome)
		case pipeline.OutcomeQueued:
			_ = utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse{Data: outcome})
		default: // blocked is a handled outcome, not a transport error
			_ = utils.WriteOK(w, outcome)
		}

		deps.Logger.Info("command submission handled",
			zap.String("command_id", outcome.CommandID.String()),
			zap.String("outcome", string(outcome.Kind)))
	}
}
