// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	candidatehandler "passage/internal/candidate/handler"
	"passage/internal/identifier"
	screeninghandler "passage/internal/screening/handler"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/httputil"
	"passage/pkg/platform/middleware/admin"
	"passage/pkg/platform/middleware/auth"
	"passage/pkg/platform/middleware/metadata"
)

// Deps carries everything the router mounts.
type Deps struct {
	Candidates  *candidatehandler.Handler
	Screenings  *screeninghandler.Handler
	Identifiers *identifier.Service
	Logger      *slog.Logger

	// JWTSigningKey verifies bearer tokens on the operational routes.
	JWTSigningKey string
	// AdminToken guards the admin routes. Empty disables them.
	AdminToken string
	// Ready reports backing-store health for the readiness probe.
	Ready func() error
}

// NewRouter wires middleware and mounts the candidate and screening routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(metadata.Annotate)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireActor(deps.JWTSigningKey, deps.Logger))
		deps.Candidates.Mount(r)
		deps.Screenings.Mount(r)
	})

	if deps.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
			r.Post("/admin/identifiers/check", checkIdentifiers(deps.Identifiers))
		})
	}

	return r
}

// checkIdentifiers is an operator diagnostic: it re-derives the check digits
// of a candidate code or national ID without touching any record.
func checkIdentifiers(svc *identifier.Service) http.HandlerFunc {
	type request struct {
		CandidateCode string `json:"candidate_code"`
		NationalID    string `json:"national_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
			return
		}
		if req.CandidateCode == "" && req.NationalID == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "candidate_code or national_id is required"))
			return
		}

		out := map[string]bool{}
		if req.CandidateCode != "" {
			out["candidate_code_valid"] = svc.ValidateCandidateCode(req.CandidateCode)
		}
		if req.NationalID != "" {
			out["national_id_valid"] = svc.ValidateNationalID(req.NationalID)
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	}
}
