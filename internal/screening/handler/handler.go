// Package handler exposes screening actions over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"passage/internal/screening/models"
	"passage/internal/screening/service"
	id "passage/pkg/domain"
	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/httputil"
	"passage/pkg/requestcontext"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler serves screening routes.
type Handler struct {
	svc *service.Service
}

// New constructs the screening handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Mount registers the screening routes on a router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/candidates/{candidateID}/screenings", h.initiate)
	r.Get("/candidates/{candidateID}/screenings", h.listByCandidate)
	r.Post("/screenings/{screeningID}/calls", h.recordCall)
	r.Post("/screenings/{screeningID}/pass", h.markPassed)
	r.Post("/screenings/{screeningID}/fail", h.markFailed)
	r.Post("/screenings/{screeningID}/defer", h.deferScreening)
	r.Post("/screenings/{screeningID}/cancel", h.cancel)
}

type initiateRequest struct {
	Type string `json:"type" validate:"required"`
}

type callRequest struct {
	Answered        bool   `json:"answered"`
	DurationSeconds int    `json:"duration_seconds" validate:"omitempty,min=0"`
	Remarks         string `json:"remarks" validate:"omitempty,max=512"`
}

type resolveRequest struct {
	Remarks string `json:"remarks" validate:"omitempty,max=512"`
}

type deferRequest struct {
	NextDate time.Time `json:"next_date" validate:"required"`
	Remarks  string    `json:"remarks" validate:"omitempty,max=512"`
}

type screeningResponse struct {
	ID           string     `json:"id"`
	CandidateID  string     `json:"candidate_id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	CallCount    int        `json:"call_count"`
	NextCallDate *time.Time `json:"next_call_date,omitempty"`
	Remarks      string     `json:"remarks,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toScreeningResponse(s *models.Screening) screeningResponse {
	return screeningResponse{
		ID:           s.ID.String(),
		CandidateID:  s.CandidateID.String(),
		Type:         string(s.Type),
		Status:       string(s.Status),
		CallCount:    s.CallCount,
		NextCallDate: s.NextCallDate,
		Remarks:      s.Remarks,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func decodeBody(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	return nil
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req initiateRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	screeningType, err := models.ParseType(req.Type)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	screening, err := h.svc.Initiate(r.Context(), candidateID, screeningType, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toScreeningResponse(screening))
}

func (h *Handler) listByCandidate(w http.ResponseWriter, r *http.Request) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "candidateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	screenings, err := h.svc.ListByCandidate(r.Context(), candidateID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]screeningResponse, 0, len(screenings))
	for _, s := range screenings {
		out = append(out, toScreeningResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) recordCall(w http.ResponseWriter, r *http.Request) {
	screeningID, err := id.ParseScreeningID(chi.URLParam(r, "screeningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req callRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.RecordCallAttempt(r.Context(), screeningID, service.CallAttemptInput{
		Answered: req.Answered,
		Duration: time.Duration(req.DurationSeconds) * time.Second,
		Remarks:  req.Remarks,
	}, requestcontext.ActorID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		CallCount    int        `json:"call_count"`
		NextCallDate *time.Time `json:"next_call_date"`
	}{result.CallCount, result.NextCallDate})
}

func (h *Handler) markPassed(w http.ResponseWriter, r *http.Request) {
	screeningID, err := id.ParseScreeningID(chi.URLParam(r, "screeningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.svc.MarkPassed(r.Context(), screeningID, requestcontext.ActorID(r.Context()), req.Remarks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, struct {
		Screening screeningResponse `json:"screening"`
		Promoted  bool              `json:"promoted"`
	}{toScreeningResponse(result.Screening), result.Promoted})
}

func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request) {
	screeningID, err := id.ParseScreeningID(chi.URLParam(r, "screeningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	screening, err := h.svc.MarkFailed(r.Context(), screeningID, requestcontext.ActorID(r.Context()), req.Remarks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toScreeningResponse(screening))
}

func (h *Handler) deferScreening(w http.ResponseWriter, r *http.Request) {
	screeningID, err := id.ParseScreeningID(chi.URLParam(r, "screeningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req deferRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	screening, err := h.svc.Defer(r.Context(), screeningID, req.NextDate, requestcontext.ActorID(r.Context()), req.Remarks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toScreeningResponse(screening))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	screeningID, err := id.ParseScreeningID(chi.URLParam(r, "screeningID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	screening, err := h.svc.Cancel(r.Context(), screeningID, requestcontext.ActorID(r.Context()), req.Remarks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toScreeningResponse(screening))
}
