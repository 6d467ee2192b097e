package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

const headerUserID = "X-User-ID"

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxModule
)

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// requireUser takes the caller identity from a header set by the upstream gateway.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headerUserID))
		if userID == "" {
			writeProblem(w, http.StatusUnauthorized, codeUnauthorized, "missing "+headerUserID+" header", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserID, userID)))
	})
}

func (h *Handler) withModule(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		module, ok := entities.ParseModule(chi.URLParam(r, "module"))
		if !ok {
			writeProblem(w, http.StatusNotFound, codeNotFound, "unknown module", nil)
			return
		}
		if _, ok := h.modules[module]; !ok {
			writeProblem(w, http.StatusNotFound, codeNotFound, "unknown module", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxModule, module)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserID).(string)
	return id
}

func (h *Handler) sessions(r *http.Request) SessionService {
	m, _ := r.Context().Value(ctxModule).(entities.Module)
	return h.modules[m]
}
