package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/service"
)

const maxFeedbackBytes = 1 << 20

type saveAnswerRequest struct {
	Answer    string `json:"answer"`
	TimeSpent int    `json:"timeSpent"`
}

func (h *Handler) startTest(w http.ResponseWriter, r *http.Request) {
	started, err := h.sessions(r).StartTest(r.Context(), userID(r), chi.URLParam(r, "testID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

func (h *Handler) updateProgress(w http.ResponseWriter, r *http.Request) {
	var u entities.ProgressUpdate
	if err := decode(r, &u); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.sessions(r).UpdateProgress(r.Context(), userID(r), chi.URLParam(r, "attemptID"), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) saveAnswer(w http.ResponseWriter, r *http.Request) {
	var req saveAnswerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	err := h.sessions(r).SaveAnswer(
		r.Context(),
		userID(r),
		chi.URLParam(r, "attemptID"),
		chi.URLParam(r, "questionID"),
		req.Answer,
		req.TimeSpent,
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	outcome, err := h.sessions(r).Submit(r.Context(), userID(r), chi.URLParam(r, "attemptID"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions(r).Abandon(r.Context(), userID(r), chi.URLParam(r, "attemptID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(entities.StatusExpired)})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sessions(r).GetStats(r.Context(), userID(r), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions(r).GetResult(r.Context(), userID(r), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) attachFeedback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFeedbackBytes))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", service.ErrInvalidInput, err))
		return
	}

	if err := h.sessions(r).AttachFeedback(r.Context(), userID(r), chi.URLParam(r, "attemptID"), json.RawMessage(body)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.sessions(r).Analytics(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) activeSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.active.ActiveSession(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": summary})
}
