// internal/controller/massaction_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/service"
)

type MassActionController struct {
	JobService      *service.JobService
	AudienceService *service.AudienceService
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if appErrors.IsValidation(err) {
		status = http.StatusBadRequest
	} else if appErrors.IsNotFound(err) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CreateMassAction creates a job from either a pre-resolved target list or a
// filter payload. Returns 201 with the new id, or 200 with the existing id
// when the idempotency key matched.
func (c *MassActionController) CreateMassAction(w http.ResponseWriter, r *http.Request) {
	var in service.CreateJobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	result, err := c.JobService.CreateJob(in)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]string{"id": result.ID})
}

// DispatchMassAction enqueues a queued job for the dispatch worker.
func (c *MassActionController) DispatchMassAction(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if err := c.JobService.Dispatch(jobID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "status": "dispatching"})
}

// PreviewAudience resolves a filter without creating anything, returning the
// counts and throttle assessment the review step shows.
func (c *MassActionController) PreviewAudience(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FilterPayload model.Filter     `json:"filterPayload"`
		Throttling    model.Throttling `json:"throttling"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	result, err := c.AudienceService.Resolve(body.FilterPayload)
	if err != nil {
		writeError(w, err)
		return
	}

	throttling := service.ResolveThrottling(body.Throttling.DelayMs, body.Throttling.MaxPerMinute, body.Throttling.MaxPerHour)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalLeads":       result.TotalLeads,
		"totalItems":       result.TotalItems,
		"targets":          result.Targets,
		"computedMinDelay": throttling.ComputedMinDelay,
		"showRiskWarning":  service.ShowRiskWarning(result.TotalItems, throttling),
	})
}

// ListMassActions returns recent jobs, newest first.
func (c *MassActionController) ListMassActions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 30
	}

	jobs, err := c.JobService.JobRepo.ListJobs(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
