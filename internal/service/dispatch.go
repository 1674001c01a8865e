// internal/service/dispatch.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
	"github.com/funilzap/crm-backend/internal/repository"
	"github.com/funilzap/crm-backend/internal/sender"
)

// Dispatcher walks a job's items in creation order, renders and sends each
// message, and records the outcome. One in-flight send at a time: the
// throttle caps outbound rate, so concurrency here would defeat it.
type Dispatcher struct {
	JobRepo     repository.JobRepositoryInterface
	LeadRepo    repository.LeadRepositoryInterface
	TagRepo     repository.TagRepositoryInterface
	Sender      sender.Sender
	CompanyName string
}

// Run executes one job to completion. Individual send failures are recorded
// on the item and never abort the run; only operational faults (cannot read
// items, cannot write status) fail the job.
func (d *Dispatcher) Run(ctx context.Context, jobID string) error {
	job, err := d.JobRepo.GetJob(jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case model.JobCompleted, model.JobFailed, model.JobCancelled:
		// Redelivered dispatch message for a settled job.
		log.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job already settled, skipping")
		return nil
	}

	if err := d.JobRepo.UpdateJobStatus(jobID, model.JobRunning); err != nil {
		return d.failJob(jobID, appErrors.NewOperational("set running", err))
	}
	log.Info().Str("job_id", jobID).Int("items", job.TotalItems).
		Int("min_delay_ms", job.Throttling.ComputedMinDelay).Msg("dispatch started")

	var limiter *rate.Limiter
	if delay := time.Duration(job.Throttling.ComputedMinDelay) * time.Millisecond; delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		// Burn the initial burst token so the gap after the first send is
		// already enforced.
		limiter.Allow()
	}

	tagNames := d.tagNames()

	for {
		items, err := d.JobRepo.ListItems(jobID, model.ItemQueued, repository.MaxItemsPerPage, 0)
		if err != nil {
			return d.failJob(jobID, appErrors.NewOperational("list items", err))
		}
		if len(items) == 0 {
			break
		}

		for _, item := range items {
			// Cooperative cancellation: a cancelled job stops before the
			// next send and its remaining items are marked skipped.
			current, err := d.JobRepo.GetJob(jobID)
			if err != nil {
				return d.failJob(jobID, appErrors.NewOperational("read job status", err))
			}
			if current.Status == model.JobCancelled {
				return d.skipRemaining(jobID)
			}

			if err := d.processItem(ctx, job, item, tagNames); err != nil {
				return d.failJob(jobID, err)
			}

			// The delay applies after every send, failed or not; the rate
			// limit is about outbound volume, not success.
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return d.failJob(jobID, appErrors.NewOperational("throttle wait", err))
				}
			}
		}
	}

	if err := d.JobRepo.UpdateJobStatus(jobID, model.JobCompleted); err != nil {
		return d.failJob(jobID, appErrors.NewOperational("set completed", err))
	}
	log.Info().Str("job_id", jobID).Msg("dispatch completed")
	return nil
}

// processItem sends one item and records the outcome. Only status-write
// errors propagate; send failures settle the item as failed.
func (d *Dispatcher) processItem(ctx context.Context, job *model.Job, item *model.JobItem, tagNames map[string]string) error {
	lead, err := d.LeadRepo.GetByID(item.LeadID)
	if err != nil {
		return appErrors.NewOperational("load lead", err)
	}
	if lead == nil {
		// The lead was deleted after job creation; nothing to send.
		msg := "lead no longer exists"
		if err := d.JobRepo.UpdateItemStatus(job.ID, item.ID, model.ItemSkipped, &msg, nil); err != nil {
			return appErrors.NewOperational("mark skipped", err)
		}
		return nil
	}

	tagsText := []string{}
	for _, t := range lead.Tags {
		if name, ok := tagNames[t]; ok {
			tagsText = append(tagsText, name)
		} else {
			tagsText = append(tagsText, t)
		}
	}

	message := RenderTemplate(job.TemplateSnapshot, RenderContext{
		Lead:        *lead,
		TagsText:    strings.Join(tagsText, ", "),
		CompanyName: d.CompanyName,
	})

	if sendErr := d.Sender.Send(ctx, item.Phone, message); sendErr != nil {
		log.Warn().Str("job_id", job.ID).Str("item_id", item.ID).Err(sendErr).Msg("send failed")
		errMsg := sendErr.Error()
		if err := d.JobRepo.UpdateItemStatus(job.ID, item.ID, model.ItemFailed, &errMsg, nil); err != nil {
			return appErrors.NewOperational("mark failed", err)
		}
		return nil
	}

	now := time.Now()
	if err := d.JobRepo.UpdateItemStatus(job.ID, item.ID, model.ItemSent, nil, &now); err != nil {
		return appErrors.NewOperational("mark sent", err)
	}
	return nil
}

// skipRemaining marks every still-queued item of a cancelled job skipped.
func (d *Dispatcher) skipRemaining(jobID string) error {
	msg := "job cancelled"
	for {
		items, err := d.JobRepo.ListItems(jobID, model.ItemQueued, repository.MaxItemsPerPage, 0)
		if err != nil {
			return d.failJob(jobID, appErrors.NewOperational("list items", err))
		}
		if len(items) == 0 {
			log.Info().Str("job_id", jobID).Msg("dispatch cancelled")
			return nil
		}
		for _, item := range items {
			if err := d.JobRepo.UpdateItemStatus(jobID, item.ID, model.ItemSkipped, &msg, nil); err != nil {
				return d.failJob(jobID, appErrors.NewOperational("mark skipped", err))
			}
		}
	}
}

// failJob records the operational failure on the job and returns the error.
// Other running jobs are unaffected.
func (d *Dispatcher) failJob(jobID string, cause error) error {
	log.Error().Str("job_id", jobID).Err(cause).Msg("dispatch failed")
	if err := d.JobRepo.UpdateJobStatus(jobID, model.JobFailed); err != nil {
		log.Error().Str("job_id", jobID).Err(err).Msg("could not mark job failed")
	}
	return cause
}

// tagNames loads the tag id to name map used for the {tags} variable. Render
// falls back to raw tag values when the lookup fails.
func (d *Dispatcher) tagNames() map[string]string {
	out := map[string]string{}
	tags, err := d.TagRepo.ListAll()
	if err != nil {
		log.Warn().Err(err).Msg("could not load tags for rendering")
		return out
	}
	for _, t := range tags {
		out[t.ID] = t.Name
	}
	return out
}
