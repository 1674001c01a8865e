package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
)

// InMemoryJobRepository implements JobRepositoryInterface without Postgres.
// It keeps the exact same counter semantics and is what the unit tests and
// single-process demo mode run against.
type InMemoryJobRepository struct {
	mu     sync.Mutex
	jobs   map[string]*model.Job
	items  map[string][]*model.JobItem // jobID -> items in creation order
	byKey  map[string]string           // idempotency key -> job id
	nowSeq int64
}

var _ JobRepositoryInterface = (*InMemoryJobRepository)(nil)

func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:  map[string]*model.Job{},
		items: map[string][]*model.JobItem{},
		byKey: map[string]string{},
	}
}

// next returns a strictly increasing timestamp so item creation order is
// stable even when many items are created within one wall-clock tick.
func (r *InMemoryJobRepository) next() time.Time {
	r.nowSeq++
	return time.Now().Add(time.Duration(r.nowSeq) * time.Nanosecond)
}

func (r *InMemoryJobRepository) CreateJob(job *model.Job, targets []model.Target) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.IdempotencyKey != nil && *job.IdempotencyKey != "" {
		if id, ok := r.byKey[*job.IdempotencyKey]; ok {
			return id, nil
		}
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := r.next()
	j := *job
	j.Status = model.JobQueued
	j.SentItems = 0
	j.FailedItems = 0
	j.CreatedAt = now
	j.UpdatedAt = now
	r.jobs[j.ID] = &j

	for _, t := range targets {
		for _, phone := range t.Phones {
			ts := r.next()
			r.items[j.ID] = append(r.items[j.ID], &model.JobItem{
				ID:        uuid.NewString(),
				JobID:     j.ID,
				LeadID:    t.LeadID,
				Phone:     phone,
				Status:    model.ItemQueued,
				CreatedAt: ts,
				UpdatedAt: ts,
			})
		}
	}

	if j.IdempotencyKey != nil && *j.IdempotencyKey != "" {
		r.byKey[*j.IdempotencyKey] = j.ID
	}
	return j.ID, nil
}

func (r *InMemoryJobRepository) GetJob(id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, appErrors.NewJobNotFound(id)
	}
	cp := *j
	return &cp, nil
}

func (r *InMemoryJobRepository) ListJobs(limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit < 1 {
		limit = 30
	}
	if limit > 200 {
		limit = 200
	}
	jobs := []*model.Job{}
	for _, j := range r.jobs {
		cp := *j
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.After(jobs[k].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *InMemoryJobRepository) UpdateJobStatus(jobID string, status model.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return appErrors.NewJobNotFound(jobID)
	}
	j.Status = status
	j.UpdatedAt = r.next()
	return nil
}

func (r *InMemoryJobRepository) ListItems(jobID string, status model.ItemStatus, limit, offset int) ([]*model.JobItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, offset = clampItemsPage(limit, offset)

	out := []*model.JobItem{}
	for _, it := range r.items[jobID] {
		if status != "" && it.Status != status {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return []*model.JobItem{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryJobRepository) UpdateItemStatus(jobID, itemID string, status model.ItemStatus, errorMessage *string, sentAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[jobID]
	if !ok {
		return appErrors.NewItemNotFound(itemID)
	}

	var item *model.JobItem
	for _, it := range r.items[jobID] {
		if it.ID == itemID {
			item = it
			break
		}
	}
	if item == nil {
		return appErrors.NewItemNotFound(itemID)
	}

	prev := item.Status
	item.Status = status
	item.ErrorMessage = errorMessage
	if sentAt != nil {
		item.SentAt = sentAt
	}
	item.UpdatedAt = r.next()

	deltaSent, deltaFailed := counterDeltas(prev, status)
	j.SentItems += deltaSent
	j.FailedItems += deltaFailed
	j.UpdatedAt = item.UpdatedAt
	return nil
}

func (r *InMemoryJobRepository) ItemStatusCounts(jobID string) (map[model.ItemStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := map[model.ItemStatus]int{
		model.ItemQueued:  0,
		model.ItemSent:    0,
		model.ItemFailed:  0,
		model.ItemSkipped: 0,
	}
	for _, it := range r.items[jobID] {
		stats[it.Status]++
	}
	return stats, nil
}
