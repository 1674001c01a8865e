package controller_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/funilzap/crm-backend/internal/controller"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/queue"
	"github.com/funilzap/crm-backend/internal/repository"
	"github.com/funilzap/crm-backend/internal/service"
)

// --- Mock repositories ---

type mockLeadRepo struct {
	leads []model.Lead
}

func (m *mockLeadRepo) ListByFunnel(funnelID string) ([]model.Lead, error) {
	out := []model.Lead{}
	for _, l := range m.leads {
		if l.FunnelID == funnelID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLeadRepo) GetByID(id string) (*model.Lead, error) {
	for _, l := range m.leads {
		if l.ID == id {
			cp := l
			return &cp, nil
		}
	}
	return nil, nil
}

type mockTagRepo struct{}

func (m *mockTagRepo) ListAll() ([]model.Tag, error) { return []model.Tag{}, nil }

type mockTemplateRepo struct{}

func (m *mockTemplateRepo) GetByID(id string) (*model.Template, error) {
	if id == "tpl-1" {
		return &model.Template{ID: "tpl-1", Type: model.TemplateText, Content: model.TemplateContent{Text: "Oi {nome}"}}, nil
	}
	return nil, nil
}

func newTestRouter(jobRepo repository.JobRepositoryInterface, leads []model.Lead) *chi.Mux {
	audienceService := &service.AudienceService{LeadRepo: &mockLeadRepo{leads: leads}, TagRepo: &mockTagRepo{}}
	jobService := &service.JobService{
		JobRepo:      jobRepo,
		TemplateRepo: &mockTemplateRepo{},
		Audience:     audienceService,
		Queue:        queue.NewInMemoryQueue(),
	}
	ctrl := &controller.MassActionController{JobService: jobService, AudienceService: audienceService}

	r := chi.NewRouter()
	r.Post("/mass-actions", ctrl.CreateMassAction)
	r.Get("/mass-actions", ctrl.ListMassActions)
	r.Post("/mass-actions/preview", ctrl.PreviewAudience)
	r.Post("/mass-actions/{id}/dispatch", ctrl.DispatchMassAction)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateMassActionValidation(t *testing.T) {
	r := newTestRouter(repository.NewInMemoryJobRepository(), nil)

	// Missing templateId.
	w := postJSON(t, r, "/mass-actions", map[string]interface{}{
		"targets": []map[string]interface{}{{"leadId": "l1", "phones": []string{"+5511999990001"}}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// No usable recipients.
	w = postJSON(t, r, "/mass-actions", map[string]interface{}{
		"templateId": "tpl-1",
		"targets":    []map[string]interface{}{{"leadId": "l1", "phones": []string{"", "  "}}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Contains(t, res["error"], "no valid recipients")
}

func TestCreateMassActionIdempotency(t *testing.T) {
	r := newTestRouter(repository.NewInMemoryJobRepository(), nil)

	body := map[string]interface{}{
		"templateId":     "tpl-1",
		"idempotencyKey": "retry-key",
		"targets":        []map[string]interface{}{{"leadId": "l1", "phones": []string{"+5511999990001"}}},
	}

	w := postJSON(t, r, "/mass-actions", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var first map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&first))

	// Retried request: same key, same job, 200 instead of 201.
	w = postJSON(t, r, "/mass-actions", body)
	require.Equal(t, http.StatusOK, w.Code)
	var second map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
	require.Equal(t, first["id"], second["id"])
}

func TestCreateMassActionResolvesFilter(t *testing.T) {
	leads := []model.Lead{
		{ID: "l1", FunnelID: "f1", Phone: "11999990001"},
		{ID: "l2", FunnelID: "f1", Phone: "11999990002"},
		{ID: "other-funnel", FunnelID: "f2", Phone: "11999990003"},
	}
	jobRepo := repository.NewInMemoryJobRepository()
	r := newTestRouter(jobRepo, leads)

	w := postJSON(t, r, "/mass-actions", map[string]interface{}{
		"templateId":    "tpl-1",
		"filterPayload": map[string]interface{}{"funnelIds": []string{"f1"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var res map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))

	job, err := jobRepo.GetJob(res["id"])
	require.NoError(t, err)
	require.Equal(t, 2, job.TotalLeads)
	require.Equal(t, 2, job.TotalItems)
	require.Equal(t, model.JobQueued, job.Status)
}

func TestPreviewAudience(t *testing.T) {
	leads := []model.Lead{
		{ID: "l1", FunnelID: "f1", Phone: "11999990001"},
		{ID: "no-phone", FunnelID: "f1"},
	}
	r := newTestRouter(repository.NewInMemoryJobRepository(), leads)

	w := postJSON(t, r, "/mass-actions/preview", map[string]interface{}{
		"filterPayload": map[string]interface{}{"funnelIds": []string{"f1"}},
		"throttling":    map[string]interface{}{"delayMs": 500, "maxPerMinute": 30, "maxPerHour": 900},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		TotalLeads       int  `json:"totalLeads"`
		TotalItems       int  `json:"totalItems"`
		ComputedMinDelay int  `json:"computedMinDelay"`
		ShowRiskWarning  bool `json:"showRiskWarning"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Equal(t, 2, res.TotalLeads)
	require.Equal(t, 1, res.TotalItems)
	require.Equal(t, 4000, res.ComputedMinDelay)
	require.False(t, res.ShowRiskWarning)
}

func TestDispatchMassActionRejectsNonQueued(t *testing.T) {
	jobRepo := repository.NewInMemoryJobRepository()
	r := newTestRouter(jobRepo, nil)

	w := postJSON(t, r, "/mass-actions", map[string]interface{}{
		"templateId": "tpl-1",
		"targets":    []map[string]interface{}{{"leadId": "l1", "phones": []string{"+5511999990001"}}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var res map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))

	require.NoError(t, jobRepo.UpdateJobStatus(res["id"], model.JobCompleted))

	w = postJSON(t, r, "/mass-actions/"+res["id"]+"/dispatch", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, r, "/mass-actions/unknown/dispatch", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
