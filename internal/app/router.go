package app

import (
	"net/http"
	"time"

	"quizportal/internal/app/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(cfg Config, h Handlers, collector *observability.Collector) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeaderName, "X-Dashboard-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	verifyLimit := RateLimit(NewLimiter(cfg.AuthRateLimitPerMin, time.Minute), "verify", ClientIP)
	submitLimit := RateLimit(NewLimiter(cfg.SubmitRateLimitPerMin, time.Minute), "submit", StudentOrIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/csrf", IssueCSRFToken)
		api.With(verifyLimit).Post("/auth/verify", h.Auth.Verify)

		api.Get("/banks", h.Banks.List)
		api.Get("/banks/{bank}/subtopics", h.Banks.Subtopics)

		api.With(h.Auth.OptionalStudent).Get("/quiz/main", h.Quiz.Main)

		api.Group(func(secure chi.Router) {
			secure.Use(h.Auth.RequireStudent)
			secure.Get("/auth/me", h.Auth.Me)
			secure.Post("/auth/logout", h.Auth.Logout)

			secure.Get("/quiz/main/attempted", h.Quiz.Attempted)
			secure.Get("/quiz/remedial", h.Quiz.Remedial)
			secure.With(submitLimit).Post("/quiz/main/submit", h.Quiz.SubmitMain)
			secure.With(submitLimit).Post("/quiz/remedial/submit", h.Quiz.SubmitRemedial)
		})

		api.Group(func(dash chi.Router) {
			dash.Use(h.Auth.RequireDashboardKey)
			dash.Get("/dashboard/performance", h.Reports.Performance)
			dash.Get("/dashboard/students/{studentID}/summary", h.Reports.StudentSummary)
			dash.Get("/dashboard/students/{studentID}/responses", h.Reports.StudentResponses)
			dash.Post("/dashboard/banks/{bank}/reload", h.Banks.Reload)
		})
	})

	return r
}
