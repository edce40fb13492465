package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/carelane/governor/services"
	"github.com/carelane/governor/utils"
)

// HandleServiceError maps domain errors to HTTP responses.
// The mapping is fixed per error type so handlers never hand-pick codes.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	errType := services.GetErrorType(err)
	details := services.GetErrorDetails(err)

	switch errType {
	case services.ErrorTypeValidation:
		_ = utils.WriteBadRequest(w, err.Error(), details)

	case services.ErrorTypeSafetyBlocked:
		_ = utils.WriteForbidden(w, err.Error())

	case services.ErrorTypeInvalidTransition:
		_ = utils.WriteConflict(w, err.Error(), details)

	case services.ErrorTypeNotFound:
		_ = utils.WriteNotFound(w, err.Error())

	case services.ErrorTypeExecutionRetryable, services.ErrorTypeExecutionTerminal:
		logger.Error("record store execution failed", zap.Error(err))
		_ = utils.WriteBadGateway(w, "Record store execution failed", details)

	case services.ErrorTypeInternal:
		logger.Error("internal service error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")

	default:
		logger.Error("unclassified service error", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
	}
}
