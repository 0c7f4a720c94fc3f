package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmodels "passage/internal/candidate/models"
	csvc "passage/internal/candidate/service"
	candidatestore "passage/internal/candidate/store/candidate"
	"passage/internal/facts"
	"passage/internal/identifier"
	"passage/internal/identifier/sequence"
	"passage/internal/screening/service"
	screeningstore "passage/internal/screening/store/screening"
	id "passage/pkg/domain"
	auditpublisher "passage/pkg/platform/audit/publisher"
	auditmemory "passage/pkg/platform/audit/store/memory"
	"passage/pkg/requestcontext"
)

type fixture struct {
	router     chi.Router
	candidates *candidatestore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	candidates := candidatestore.NewInMemory()
	screenings := screeningstore.NewInMemory()
	factsStore := facts.NewInMemoryStore()
	publisher := auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())

	issuer, err := identifier.New(sequence.NewInMemory(), "PMC")
	require.NoError(t, err)
	lifecycle, err := csvc.New(candidates, factsStore.Facts(screenings), issuer,
		csvc.WithAuditPublisher(publisher))
	require.NoError(t, err)
	svc, err := service.New(screenings, lifecycle, service.WithAuditPublisher(publisher))
	require.NoError(t, err)

	actorID := id.ActorID(uuid.New())
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActorID(r.Context(), actorID)))
		})
	})
	New(svc).Mount(router)

	return &fixture{router: router, candidates: candidates}
}

func (f *fixture) seedCandidate(t *testing.T) *cmodels.Candidate {
	t.Helper()
	c, err := cmodels.NewCandidate(id.NewCandidateID(), "Ali Raza", "3520212345674", "0300-1234567", time.Now())
	require.NoError(t, err)
	c.Status = cmodels.StatusScreening
	require.NoError(t, f.candidates.Create(context.Background(), c))
	return c
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) initiate(t *testing.T, candidateID id.CandidateID, screeningType string) screeningResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/candidates/%s/screenings", candidateID),
		map[string]string{"type": screeningType})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out screeningResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestInitiateEndpoint(t *testing.T) {
	f := newFixture(t)
	c := f.seedCandidate(t)

	t.Run("creates a pending screening", func(t *testing.T) {
		out := f.initiate(t, c.ID, "call")
		assert.Equal(t, "pending", out.Status)
		assert.Equal(t, "call", out.Type)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/candidates/%s/screenings", c.ID),
			map[string]string{"type": "astrology"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list returns the candidate's screenings", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/candidates/%s/screenings", c.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list []screeningResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list, 1)
	})
}

func TestCallEndpoint(t *testing.T) {
	f := newFixture(t)
	c := f.seedCandidate(t)
	screening := f.initiate(t, c.ID, "call")

	t.Run("records attempts until the limit", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			rec := f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/calls",
				map[string]any{"answered": false, "remarks": "no answer"})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var out struct {
				CallCount    int        `json:"call_count"`
				NextCallDate *time.Time `json:"next_call_date"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, i, out.CallCount)
			if i < 3 {
				assert.NotNil(t, out.NextCallDate)
			} else {
				assert.Nil(t, out.NextCallDate)
			}
		}
	})

	t.Run("attempts past the limit are unprocessable", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/calls",
			map[string]any{"answered": false})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestResolutionEndpoints(t *testing.T) {
	f := newFixture(t)
	c := f.seedCandidate(t)

	t.Run("pass reports promotion state", func(t *testing.T) {
		screening := f.initiate(t, c.ID, "desk")
		rec := f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/pass",
			map[string]string{"remarks": "clean record"})
		require.Equal(t, http.StatusOK, rec.Code)

		var out struct {
			Screening screeningResponse `json:"screening"`
			Promoted  bool              `json:"promoted"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "passed", out.Screening.Status)
		assert.False(t, out.Promoted, "call and physical are still outstanding")
	})

	t.Run("defer requires a next date", func(t *testing.T) {
		screening := f.initiate(t, c.ID, "call")
		rec := f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/defer",
			map[string]string{"remarks": "no date"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/defer", map[string]any{
			"next_date": time.Now().AddDate(0, 0, 7).Format(time.RFC3339),
			"remarks":   "candidate travelling",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("cancel is terminal", func(t *testing.T) {
		screening := f.initiate(t, c.ID, "medical")
		rec := f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/cancel",
			map[string]string{"remarks": "withdrawn"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodPost, "/screenings/"+screening.ID+"/pass", map[string]string{})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown screening is 404", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/screenings/"+uuid.NewString()+"/cancel",
			map[string]string{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
