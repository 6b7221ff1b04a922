package http

import (
	"errors"
	"net/http"

	"babybudget/internal/core"
	"babybudget/internal/log"
)

// errorResponse maps a service error onto its HTTP response. Internal errors
// get a generic message; the details only go to the log.
func errorResponse(err error) (*JSONResponseBuilder, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return BadRequestError(err.Error()), log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error()), log.ErrorTypeNotFound
	case errors.Is(err, core.ErrLimitExceeded):
		return ForbiddenError(err.Error()), log.ErrorTypeLimit
	case errors.Is(err, core.ErrConflict):
		return ConflictError("The budget was modified concurrently, please retry"), log.ErrorTypeConflict
	default:
		return InternalServerError(), log.ErrorTypeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp, errType := errorResponse(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if errType == log.ErrorTypeInternal {
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")))
	} else {
		logger.DebugContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorType, errType,
			log.FieldError, err)
	}
	resp.Write(w)
}
