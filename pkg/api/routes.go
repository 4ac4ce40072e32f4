package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Get("/health", s.handleHealth)

	// Dashboard read endpoints. Anonymous by default; when disabled,
	// a bearer read token is required.
	r.Group(func(r chi.Router) {
		if !s.cfg.Auth.AnonymousRead {
			r.Use(s.requireReadToken)
		}

		r.Get("/", s.handleLatest)
		r.Get("/by_version/{version}", s.handleByVersion)
		r.Get("/repo/{repo}", s.handleRepo)
		r.Get("/repo/{owner}/{repo}", s.handleOwnerRepo)
		r.Get("/user/{owner}", s.handleUser)
		r.Get("/by_user_and_version/{owner}/{version}", s.handleUserAndVersion)
		r.Get("/raw_recent_data", s.handleRawRecentData)
	})

	// Submission endpoint, authenticated by HMAC on the payload itself.
	r.Group(func(r chi.Router) {
		if s.cfg.Server.RateLimit.Enabled {
			r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit.Submit))
		}

		r.Post("/submit_job_log", s.handleSubmitJobLog)
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
