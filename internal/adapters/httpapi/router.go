package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: request decoding happens here, every
// lifecycle rule lives in the app layer.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoint used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/members", s.handleListMembers)
		r.Get("/members/{id}", s.handleGetMember)
		r.Patch("/members/{id}", s.handleUpdateMember)
		r.Delete("/members/{id}", s.handleDeleteMember)
		r.Post("/members/{id}/renew", s.handleRenew)

		r.Get("/applications", s.handleListApplications)
		r.Post("/applications", s.handleSubmitApplication)
		r.Get("/applications/{id}", s.handleGetApplication)
		r.Patch("/applications/{id}", s.handleUpdateApplication)
		r.Delete("/applications/{id}", s.handleDeleteApplication)
		r.Post("/applications/{id}/approve", s.handleApprove)
		r.Post("/applications/{id}/reject", s.handleReject)

		r.Post("/import", s.handleImport)
		r.Get("/export", s.handleExport)
	})

	return r
}
