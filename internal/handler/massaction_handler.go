// internal/handler/massaction_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/repository"
)

// MassActionHandler serves the polling surface: job details with per-status
// stats, job status writes, and the item list/update endpoints the dispatch
// loop and progress UIs share.
type MassActionHandler struct {
	JobRepo repository.JobRepositoryInterface
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

// GetMassActionWithStats returns the job plus live per-status item counts.
func (h *MassActionHandler) GetMassActionWithStats(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.JobRepo.GetJob(jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.JobRepo.ItemStatusCounts(jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":   job,
		"stats": stats,
	})
}

// UpdateMassActionStatus is the direct job status write (queued, running,
// completed, failed, cancelled). No counter side effects.
func (h *MassActionHandler) UpdateMassActionStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	var body struct {
		Status model.JobStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !model.ValidJobStatus(body.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	if err := h.JobRepo.UpdateJobStatus(jobID, body.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": jobID, "status": string(body.Status)})
}

// ListMassActionItems pages a job's items in creation order, optionally
// filtered by status.
func (h *MassActionHandler) ListMassActionItems(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := model.ItemStatus(r.URL.Query().Get("status"))
	if status != "" && !model.ValidItemStatus(status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	items, err := h.JobRepo.ListItems(jobID, status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdateMassActionItem applies the transactional item status transition that
// keeps the job counters consistent.
func (h *MassActionHandler) UpdateMassActionItem(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	var body struct {
		ItemID       string           `json:"itemId"`
		Status       model.ItemStatus `json:"status"`
		ErrorMessage *string          `json:"errorMessage,omitempty"`
		SentAt       *time.Time       `json:"sentAt,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if body.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "itemId is required"})
		return
	}
	if !model.ValidItemStatus(body.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	if err := h.JobRepo.UpdateItemStatus(jobID, body.ItemID, body.Status, body.ErrorMessage, body.SentAt); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": body.ItemID, "status": string(body.Status)})
}
