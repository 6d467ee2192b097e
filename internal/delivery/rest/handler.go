package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
)

// Handler exposes the session engine as JSON over HTTP.
type Handler struct {
	modules     map[entities.Module]SessionService
	active      ActiveSessionService
	corsOrigins []string
	logger      *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(
	modules map[entities.Module]SessionService,
	active ActiveSessionService,
	corsOrigins []string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		modules:     modules,
		active:      active,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, h.requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", headerUserID},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/sessions/active", h.activeSession)

		r.Route("/{module}", func(r chi.Router) {
			r.Use(h.withModule)

			r.Post("/tests/{testID}/start", h.startTest)
			r.Get("/analytics", h.analytics)

			r.Route("/attempts/{attemptID}", func(r chi.Router) {
				r.Patch("/progress", h.updateProgress)
				r.Put("/answers/{questionID}", h.saveAnswer)
				r.Post("/submit", h.submit)
				r.Post("/abandon", h.abandon)
				r.Get("/stats", h.stats)
				r.Get("/result", h.result)
				r.Put("/feedback", h.attachFeedback)
			})
		})
	})

	return r
}
