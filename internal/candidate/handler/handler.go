// Package handler exposes the candidate lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passage/internal/candidate/models"
	"passage/internal/candidate/service"
	"passage/internal/duplicate"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/httputil"
	"passage/pkg/requestcontext"
)

// AuditLister reads a candidate's audit trail.
type AuditLister interface {
	List(ctx context.Context, candidateID id.CandidateID) ([]audit.Event, error)
}

// Handler serves candidate routes.
type Handler struct {
	svc   *service.Service
	audit AuditLister
}

// New constructs the candidate handler.
func New(svc *service.Service, auditLister AuditLister) *Handler {
	return &Handler{svc: svc, audit: auditLister}
}

// Mount registers the candidate routes on a router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/candidates", h.intake)
	r.Get("/candidates/{candidateID}", h.get)
	r.Get("/candidates/{candidateID}/transitions/{target}", h.validateTransition)
	r.Post("/candidates/{candidateID}/transitions", h.applyTransition)
	r.Put("/candidates/{candidateID}/at-risk", h.setAtRisk)
	r.Get("/candidates/{candidateID}/audit", h.listAudit)
	r.Get("/duplicates", h.findDuplicates)
}

type candidateResponse struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	ApplicationID     string     `json:"application_id"`
	NationalID        string     `json:"national_id"`
	FullName          string     `json:"full_name"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email,omitempty"`
	Status            string     `json:"status"`
	TrainingStatus    string     `json:"training_status"`
	TrainingStartedAt *time.Time `json:"training_started_at,omitempty"`
	TrainingEndedAt   *time.Time `json:"training_ended_at,omitempty"`
	AtRiskReason      string     `json:"at_risk_reason,omitempty"`
	AtRiskSince       *time.Time `json:"at_risk_since,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	RetiredAt         *time.Time `json:"retired_at,omitempty"`
}

func toCandidateResponse(c *models.Candidate) candidateResponse {
	return candidateResponse{
		ID:                c.ID.String(),
		Code:              c.Code,
		ApplicationID:     c.ApplicationID,
		NationalID:        c.NationalID,
		FullName:          c.FullName,
		Phone:             c.Phone,
		Email:             c.Email,
		Status:            string(c.Status),
		TrainingStatus:    string(c.TrainingStatus),
		TrainingStartedAt: c.TrainingStartedAt,
		TrainingEndedAt:   c.TrainingEndedAt,
		AtRiskReason:      c.AtRiskReason,
		AtRiskSince:       c.AtRiskSince,
		CreatedAt:         c.CreatedAt,
		RetiredAt:         c.RetiredAt,
	}
}

type duplicateResponse struct {
	CandidateID string `json:"candidate_id"`
	FullName    string `json:"full_name"`
	MatchType   string `json:"match_type"`
	Confidence  int    `json:"confidence"`
}

func toDuplicateResponses(matches []duplicate.Match) []duplicateResponse {
	out := make([]duplicateResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, duplicateResponse{
			CandidateID: m.CandidateID.String(),
			FullName:    m.FullName,
			MatchType:   string(m.MatchType),
			Confidence:  m.Confidence,
		})
	}
	return out
}

func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := checkRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.Intake(r.Context(), service.IntakeInput{
		FullName:   req.FullName,
		NationalID: req.NationalID,
		Phone:      req.Phone,
		Email:      req.Email,
		BatchID:    optionalUUID(req.BatchID),
		CampusID:   optionalUUID(req.CampusID),
		TradeID:    optionalUUID(req.TradeID),
		ProgramID:  optionalUUID(req.ProgramID),
	}, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, struct {
		Candidate  candidateResponse   `json:"candidate"`
		Duplicates []duplicateResponse `json:"potential_duplicates"`
	}{toCandidateResponse(result.Candidate), toDuplicateResponses(result.Duplicates)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	candidate, err := h.svc.Get(r.Context(), candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCandidateResponse(candidate))
}

func (h *Handler) validateTransition(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The target is passed through raw: the validator answers unknown
	// statuses with a normal disallowed decision, not a parse error.
	target := models.Status(chi.URLParam(r, "target"))

	decision, err := h.svc.ValidateTransition(r.Context(), candidateID, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Allowed bool     `json:"allowed"`
		Issues  []string `json:"issues"`
	}{decision.Allowed, decision.Issues})
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := checkRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.ApplyTransition(r.Context(), candidateID, models.Status(req.Target),
		requestcontext.ActorID(r.Context()), req.Remarks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		NewStatus    string `json:"new_status"`
		AuditEventID string `json:"audit_event_id"`
	}{string(result.NewStatus), result.AuditEventID.String()})
}

func (h *Handler) setAtRisk(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req atRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := checkRequest(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	candidate, err := h.svc.SetAtRisk(r.Context(), candidateID, req.Reason, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCandidateResponse(candidate))
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.audit.List(r.Context(), candidateID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	type eventResponse struct {
		ID         string    `json:"id"`
		Timestamp  time.Time `json:"timestamp"`
		EntityType string    `json:"entity_type"`
		Action     string    `json:"action"`
		OldStatus  string    `json:"old_status,omitempty"`
		NewStatus  string    `json:"new_status,omitempty"`
		ActorID    string    `json:"actor_id,omitempty"`
		Remarks    string    `json:"remarks,omitempty"`
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp := eventResponse{
			ID:         e.ID.String(),
			Timestamp:  e.Timestamp,
			EntityType: e.EntityType,
			Action:     e.Action,
			OldStatus:  e.OldStatus,
			NewStatus:  e.NewStatus,
			Remarks:    e.Remarks,
		}
		if !e.ActorID.IsNil() {
			resp.ActorID = e.ActorID.String()
		}
		out = append(out, resp)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) findDuplicates(w http.ResponseWriter, r *http.Request) {
	q := duplicate.Query{
		Phone: r.URL.Query().Get("phone"),
		Email: r.URL.Query().Get("email"),
		Name:  r.URL.Query().Get("name"),
	}
	if exclude := r.URL.Query().Get("exclude"); exclude != "" {
		excludeID, err := id.ParseCandidateID(exclude)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		q.ExcludeID = excludeID
	}

	matches, err := h.svc.FindDuplicates(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDuplicateResponses(matches))
}
