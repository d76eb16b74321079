package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/alumnitrack/internal/api/middleware"
	"github.com/kiranshivaraju/alumnitrack/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateJob    http.HandlerFunc
	ListJobs     http.HandlerFunc
	GetJob       http.HandlerFunc
	ProcessJob   http.HandlerFunc
	ListQueue    http.HandlerFunc
	RetryJob     http.HandlerFunc
	JobFailures  http.HandlerFunc
	JobEvents    http.HandlerFunc
	ListProfiles http.HandlerFunc
	GetProfile   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJob))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Post("/api/v1/jobs/{jobID}/process", orNotImplemented(deps.ProcessJob))
		r.Get("/api/v1/jobs/{jobID}/queue", orNotImplemented(deps.ListQueue))
		r.Post("/api/v1/jobs/{jobID}/retry", orNotImplemented(deps.RetryJob))
		r.Get("/api/v1/jobs/{jobID}/failures", orNotImplemented(deps.JobFailures))
		r.Get("/api/v1/jobs/{jobID}/events", orNotImplemented(deps.JobEvents))

		r.Get("/api/v1/profiles", orNotImplemented(deps.ListProfiles))
		r.Get("/api/v1/profiles/{profileID}", orNotImplemented(deps.GetProfile))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
