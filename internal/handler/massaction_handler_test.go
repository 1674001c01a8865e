package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/funilzap/crm-backend/internal/handler"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/repository"
)

func newTestServer(t *testing.T) (*chi.Mux, *repository.InMemoryJobRepository, string) {
	t.Helper()

	jobRepo := repository.NewInMemoryJobRepository()
	jobID, err := jobRepo.CreateJob(&model.Job{
		TemplateID:       "tpl-1",
		TemplateSnapshot: model.Template{Type: model.TemplateText, Content: model.TemplateContent{Text: "oi"}},
		TotalLeads:       2,
		TotalItems:       3,
	}, []model.Target{
		{LeadID: "l1", Phones: []string{"+5511999990001", "+5511999990002"}},
		{LeadID: "l2", Phones: []string{"+5511999990003"}},
	})
	require.NoError(t, err)

	h := &handler.MassActionHandler{JobRepo: jobRepo}
	r := chi.NewRouter()
	r.Get("/mass-actions/{id}", h.GetMassActionWithStats)
	r.Patch("/mass-actions/{id}", h.UpdateMassActionStatus)
	r.Get("/mass-actions/{id}/items", h.ListMassActionItems)
	r.Patch("/mass-actions/{id}/items", h.UpdateMassActionItem)
	return r, jobRepo, jobID
}

func patchJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("PATCH", path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetMassActionWithStats(t *testing.T) {
	r, _, jobID := newTestServer(t)

	req := httptest.NewRequest("GET", "/mass-actions/"+jobID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Job   model.Job                `json:"job"`
		Stats map[model.ItemStatus]int `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Equal(t, jobID, res.Job.ID)
	require.Equal(t, 3, res.Stats[model.ItemQueued])

	req = httptest.NewRequest("GET", "/mass-actions/unknown", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMassActionStatus(t *testing.T) {
	r, jobRepo, jobID := newTestServer(t)

	w := patchJSON(t, r, "/mass-actions/"+jobID, map[string]string{"status": "running"})
	require.Equal(t, http.StatusOK, w.Code)

	job, _ := jobRepo.GetJob(jobID)
	require.Equal(t, model.JobRunning, job.Status)

	w = patchJSON(t, r, "/mass-actions/"+jobID, map[string]string{"status": "sending"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateMassActionItemAdjustsCounters(t *testing.T) {
	r, jobRepo, jobID := newTestServer(t)

	items, err := jobRepo.ListItems(jobID, "", 500, 0)
	require.NoError(t, err)

	sentAt := time.Now().UTC().Truncate(time.Second)
	w := patchJSON(t, r, "/mass-actions/"+jobID+"/items", map[string]interface{}{
		"itemId": items[0].ID,
		"status": "sent",
		"sentAt": sentAt,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = patchJSON(t, r, "/mass-actions/"+jobID+"/items", map[string]interface{}{
		"itemId":       items[1].ID,
		"status":       "failed",
		"errorMessage": "gateway timeout",
	})
	require.Equal(t, http.StatusOK, w.Code)

	job, _ := jobRepo.GetJob(jobID)
	require.Equal(t, 1, job.SentItems)
	require.Equal(t, 1, job.FailedItems)

	updated, _ := jobRepo.ListItems(jobID, "", 500, 0)
	require.Equal(t, model.ItemSent, updated[0].Status)
	require.NotNil(t, updated[0].SentAt)
	require.True(t, updated[0].SentAt.Equal(sentAt))

	// Missing itemId and unknown item.
	w = patchJSON(t, r, "/mass-actions/"+jobID+"/items", map[string]interface{}{"status": "sent"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = patchJSON(t, r, "/mass-actions/"+jobID+"/items", map[string]interface{}{"itemId": "bogus", "status": "sent"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMassActionItemsFilterAndPaging(t *testing.T) {
	r, jobRepo, jobID := newTestServer(t)

	items, _ := jobRepo.ListItems(jobID, "", 500, 0)
	now := time.Now()
	require.NoError(t, jobRepo.UpdateItemStatus(jobID, items[0].ID, model.ItemSent, nil, &now))

	req := httptest.NewRequest("GET", "/mass-actions/"+jobID+"/items?status=queued", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var queued []model.JobItem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&queued))
	require.Len(t, queued, 2)

	req = httptest.NewRequest("GET", "/mass-actions/"+jobID+"/items?limit=1&offset=1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var page []model.JobItem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.Len(t, page, 1)
	require.Equal(t, items[1].ID, page[0].ID)

	req = httptest.NewRequest("GET", "/mass-actions/"+jobID+"/items?status=banana", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
