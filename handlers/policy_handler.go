package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/utils"
)

// GetPolicyHandler returns the active safety policy snapshot
func GetPolicyHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, deps.PolicyProvider.Current())
	}
}

// ReloadPolicyHandler re-reads the safety policy file and swaps the active
// snapshot. A policy that fails validation is rejected and the previous
// snapshot stays in effect.
func ReloadPolicyHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.PolicyProvider.Reload(); err != nil {
			deps.Logger.Warn("policy reload rejected", zap.Error(err))
			_ = utils.WriteUnprocessable(w, "Policy reload rejected", map[string]interface{}{
				"cause": err.Error(),
			})
			return
		}
		_ = utils.WriteOK(w, deps.PolicyProvider.Current())
	}
}
