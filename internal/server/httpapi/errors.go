package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/auth"
	"github.com/dmitrijs2005/eventsnap/internal/server/ratelimit"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps the error taxonomy to a status code and a stable error code.
// Order matters: the assembly errors wrap common.ErrAssembly.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, common.ErrTotalSizeExceeded), errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, common.ErrNoSuccessfulItems):
		return http.StatusUnprocessableEntity, "no_successful_items"
	case errors.Is(err, common.ErrWatermarkUnsupported):
		return http.StatusUnsupportedMediaType, "watermark_unsupported"
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrVersionConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrStorage):
		return http.StatusBadGateway, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err as JSON. Internal errors are logged and their text
// is not sent to the client.
func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	status, code := statusFor(err)

	var exceeded *ratelimit.ExceededError
	if errors.As(err, &exceeded) {
		secs := int(math.Ceil(exceeded.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "status", status, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}

	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
