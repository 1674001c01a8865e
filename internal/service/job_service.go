// internal/service/job_service.go
package service

import (
	"strings"

	"github.com/rs/zerolog/log"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/queue"
	"github.com/funilzap/crm-backend/internal/repository"
)

// MaxItemsPerRun bounds the blast radius of a single job.
const MaxItemsPerRun = 5000

type JobService struct {
	JobRepo      repository.JobRepositoryInterface
	TemplateRepo repository.TemplateRepositoryInterface
	Audience     *AudienceService
	Queue        queue.Queue

	// DefaultThrottling applies when a request carries no throttle values.
	DefaultThrottling model.Throttling
}

type CreateJobInput struct {
	CreatedBy        model.Actor      `json:"createdBy"`
	TemplateID       string           `json:"templateId"`
	TemplateSnapshot *model.Template  `json:"templateSnapshot,omitempty"`
	FilterPayload    model.Filter     `json:"filterPayload"`
	Throttling       model.Throttling `json:"throttling"`
	IdempotencyKey   string           `json:"idempotencyKey,omitempty"`
	// Targets, when present, is the caller's pre-resolved audience. When
	// empty the audience is resolved server-side from FilterPayload.
	Targets []model.Target `json:"targets,omitempty"`
}

type CreateJobResult struct {
	ID      string `json:"id"`
	Created bool   `json:"-"`
}

// CreateJob validates the request, freezes template snapshot and throttling,
// and persists the job with its items. Retries with the same idempotency key
// return the existing job's id.
func (s *JobService) CreateJob(in CreateJobInput) (*CreateJobResult, error) {
	if strings.TrimSpace(in.TemplateID) == "" {
		return nil, appErrors.NewValidation("templateId is required")
	}

	snapshot := in.TemplateSnapshot
	if snapshot == nil {
		t, err := s.TemplateRepo.GetByID(in.TemplateID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, appErrors.NewValidation("template %s not found", in.TemplateID)
		}
		snapshot = t
	}

	targets := cleanTargets(in.Targets)
	totalLeads := len(targets)
	if len(targets) == 0 {
		resolved, err := s.Audience.Resolve(in.FilterPayload)
		if err != nil {
			return nil, err
		}
		targets = resolved.Targets
		totalLeads = resolved.TotalLeads
	}

	totalItems := 0
	for _, t := range targets {
		totalItems += len(t.Phones)
	}
	if totalItems <= 0 {
		return nil, appErrors.NewValidation("no valid recipients")
	}
	if totalItems > MaxItemsPerRun {
		return nil, appErrors.NewValidation("exceeds per-run limit of %d items", MaxItemsPerRun)
	}

	throttling := in.Throttling
	if throttling.DelayMs == 0 && throttling.MaxPerMinute == 0 && throttling.MaxPerHour == 0 {
		throttling = s.DefaultThrottling
	}
	if throttling.ComputedMinDelay == 0 {
		throttling = ResolveThrottling(throttling.DelayMs, throttling.MaxPerMinute, throttling.MaxPerHour)
	}

	job := &model.Job{
		CreatedBy:        in.CreatedBy,
		TemplateID:       in.TemplateID,
		TemplateSnapshot: *snapshot,
		FilterPayload:    in.FilterPayload,
		Throttling:       throttling,
		TotalLeads:       totalLeads,
		TotalItems:       totalItems,
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		job.IdempotencyKey = &key
	}

	id, err := s.JobRepo.CreateJob(job, targets)
	if err != nil {
		return nil, err
	}

	created := id == job.ID
	if created {
		log.Info().Str("job_id", id).Int("leads", totalLeads).Int("items", totalItems).Msg("mass action job created")
	} else {
		log.Info().Str("job_id", id).Msg("idempotency key matched, returning existing job")
	}
	return &CreateJobResult{ID: id, Created: created}, nil
}

// Dispatch hands a queued job to the dispatch worker.
func (s *JobService) Dispatch(jobID string) error {
	job, err := s.JobRepo.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobQueued {
		return appErrors.NewValidation("job cannot be dispatched in status %s", job.Status)
	}
	return s.Queue.Publish(queue.DispatchQueue, jobID)
}

// cleanTargets drops blank lead ids and phones, deduplicating phones per
// lead while keeping order.
func cleanTargets(in []model.Target) []model.Target {
	out := []model.Target{}
	for _, t := range in {
		leadID := strings.TrimSpace(t.LeadID)
		if leadID == "" {
			continue
		}
		phones := []string{}
		seen := map[string]bool{}
		for _, p := range t.Phones {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			phones = append(phones, p)
		}
		if len(phones) == 0 {
			continue
		}
		out = append(out, model.Target{LeadID: leadID, Phones: phones})
	}
	return out
}
