package rest

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aliskhannn/ielts-mock-engine/internal/service"
)

const (
	codeQuotaExceeded    = "QUOTA_EXCEEDED"
	codeSessionConflict  = "SESSION_CONFLICT"
	codeTestNotFound     = "TEST_NOT_FOUND"
	codeNotFound         = "NOT_FOUND"
	codeNotActive        = "NOT_ACTIVE"
	codeAlreadySubmitted = "ALREADY_SUBMITTED"
	codeExpired          = "EXPIRED"
	codeEvaluationFailed = "EVALUATION_FAILED"
	codeInvalidInput     = "INVALID_INPUT"
	codeUnauthorized     = "UNAUTHORIZED"
	codeInternal         = "INTERNAL"
)

type problem struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, problem{Code: code, Message: message, Details: details})
}

// writeError maps service errors to status codes. Unknown errors are logged and hidden.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		details := map[string]any{}
		if conflict.Reason != "" {
			details["reason"] = conflict.Reason
		}
		if conflict.AttemptID != "" {
			details["module"] = conflict.Module
			details["testId"] = conflict.TestID
			details["attemptId"] = conflict.AttemptID
		}
		if conflict.ExpiresAt != nil {
			details["expiresAt"] = conflict.ExpiresAt
		}
		if conflict.RetryAt != nil {
			details["retryAt"] = conflict.RetryAt
			secs := int(math.Ceil(time.Until(*conflict.RetryAt).Seconds()))
			if secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
		}

		code := codeSessionConflict
		if errors.Is(err, service.ErrQuotaExceeded) {
			code = codeQuotaExceeded
		}
		writeProblem(w, http.StatusConflict, code, conflict.Error(), details)
		return
	}

	switch {
	case errors.Is(err, service.ErrTestNotFound):
		writeProblem(w, http.StatusNotFound, codeTestNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrResultNotFound):
		writeProblem(w, http.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrNotActive):
		writeProblem(w, http.StatusConflict, codeNotActive, err.Error(), nil)
	case errors.Is(err, service.ErrAlreadySubmitted):
		writeProblem(w, http.StatusConflict, codeAlreadySubmitted, err.Error(), nil)
	case errors.Is(err, service.ErrExpired):
		writeProblem(w, http.StatusGone, codeExpired, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, codeInvalidInput, err.Error(), nil)
	case errors.Is(err, service.ErrEvaluation):
		writeProblem(w, http.StatusInternalServerError, codeEvaluationFailed, "scoring failed, submit again", nil)
	default:
		h.logger.Sugar().Errorw("unhandled error", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Join(service.ErrInvalidInput, err)
	}
	return nil
}
