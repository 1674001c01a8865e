package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/funilzap/crm-backend/internal/errors"
	"github.com/funilzap/crm-backend/internal/model"
)

// MaxItemsPerPage caps a single ListItems read.
const MaxItemsPerPage = 500

type JobRepositoryInterface interface {
	// CreateJob inserts the job and one item per (lead, phone) pair in a
	// single transaction. When the idempotency key already exists the id of
	// the existing job is returned and nothing is written.
	CreateJob(job *model.Job, targets []model.Target) (string, error)
	GetJob(id string) (*model.Job, error)
	ListJobs(limit int) ([]*model.Job, error)
	UpdateJobStatus(jobID string, status model.JobStatus) error
	ListItems(jobID string, status model.ItemStatus, limit, offset int) ([]*model.JobItem, error)
	UpdateItemStatus(jobID, itemID string, status model.ItemStatus, errorMessage *string, sentAt *time.Time) error
	ItemStatusCounts(jobID string) (map[model.ItemStatus]int, error)
}

type JobRepository struct {
	DB *sql.DB
}

var _ JobRepositoryInterface = (*JobRepository)(nil)

// counterDeltas computes how the job's sent/failed counters move for an item
// going from prev to next. Repeating the same transition yields (0, 0), so
// at-least-once delivery of status updates cannot double-count.
func counterDeltas(prev, next model.ItemStatus) (deltaSent, deltaFailed int) {
	ind := func(s model.ItemStatus, want model.ItemStatus) int {
		if s == want {
			return 1
		}
		return 0
	}
	deltaSent = ind(next, model.ItemSent) - ind(prev, model.ItemSent)
	deltaFailed = ind(next, model.ItemFailed) - ind(prev, model.ItemFailed)
	return
}

func clampItemsPage(limit, offset int) (int, int) {
	if limit < 1 {
		limit = 200
	}
	if limit > MaxItemsPerPage {
		limit = MaxItemsPerPage
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ====================== Jobs ======================

func (r *JobRepository) CreateJob(job *model.Job, targets []model.Target) (string, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if job.IdempotencyKey != nil && *job.IdempotencyKey != "" {
		var existingID string
		err := tx.QueryRow(
			`SELECT id FROM mass_action_jobs WHERE idempotency_key = $1`,
			*job.IdempotencyKey,
		).Scan(&existingID)
		if err == nil {
			return existingID, nil
		}
		if err != sql.ErrNoRows {
			return "", err
		}
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = model.JobQueued
	job.SentItems = 0
	job.FailedItems = 0

	createdBy, _ := json.Marshal(job.CreatedBy)
	snapshot, _ := json.Marshal(job.TemplateSnapshot)
	filter, _ := json.Marshal(job.FilterPayload)
	throttling, _ := json.Marshal(job.Throttling)

	_, err = tx.Exec(`
        INSERT INTO mass_action_jobs
            (id, idempotency_key, created_by, template_id, template_snapshot,
             filter_payload, throttling, status, total_leads, total_items,
             sent_items, failed_items, created_at, updated_at)
        VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8, $9, $10, 0, 0, NOW(), NOW())`,
		job.ID, job.IdempotencyKey, createdBy, job.TemplateID, snapshot,
		filter, throttling, job.Status, job.TotalLeads, job.TotalItems,
	)
	if err != nil {
		return "", err
	}

	// Bulk insert items, one row per (lead, phone).
	values := []interface{}{}
	chunks := ""
	idx := 1
	for _, t := range targets {
		for _, phone := range t.Phones {
			if chunks != "" {
				chunks += ","
			}
			chunks += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, NOW(), NOW())", idx, idx+1, idx+2, idx+3, idx+4)
			values = append(values, uuid.NewString(), job.ID, t.LeadID, phone, model.ItemQueued)
			idx += 5
		}
	}
	if chunks != "" {
		_, err = tx.Exec(
			`INSERT INTO mass_action_job_items (id, job_id, lead_id, phone, status, created_at, updated_at) VALUES `+chunks,
			values...,
		)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return job.ID, nil
}

func scanJob(row interface{ Scan(...interface{}) error }) (*model.Job, error) {
	var (
		j                                     model.Job
		createdBy, snapshot, filter, throttle []byte
	)
	err := row.Scan(
		&j.ID, &j.IdempotencyKey, &createdBy, &j.TemplateID, &snapshot,
		&filter, &throttle, &j.Status, &j.TotalLeads, &j.TotalItems,
		&j.SentItems, &j.FailedItems, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(createdBy, &j.CreatedBy)
	_ = json.Unmarshal(snapshot, &j.TemplateSnapshot)
	_ = json.Unmarshal(filter, &j.FilterPayload)
	_ = json.Unmarshal(throttle, &j.Throttling)
	return &j, nil
}

const jobColumns = `id, idempotency_key, created_by, template_id, template_snapshot,
    filter_payload, throttling, status, total_leads, total_items,
    sent_items, failed_items, created_at, updated_at`

func (r *JobRepository) GetJob(id string) (*model.Job, error) {
	row := r.DB.QueryRow(`SELECT `+jobColumns+` FROM mass_action_jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, appErrors.NewJobNotFound(id)
	}
	return j, err
}

func (r *JobRepository) ListJobs(limit int) ([]*model.Job, error) {
	if limit < 1 {
		limit = 30
	}
	if limit > 200 {
		limit = 200
	}
	rows, err := r.DB.Query(`SELECT `+jobColumns+` FROM mass_action_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) UpdateJobStatus(jobID string, status model.JobStatus) error {
	var id string
	err := r.DB.QueryRow(
		`UPDATE mass_action_jobs SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING id`,
		jobID, status,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return appErrors.NewJobNotFound(jobID)
	}
	return err
}

// ====================== Items ======================

func (r *JobRepository) ListItems(jobID string, status model.ItemStatus, limit, offset int) ([]*model.JobItem, error) {
	limit, offset = clampItemsPage(limit, offset)

	query := `SELECT id, job_id, lead_id, phone, status, error_message, sent_at, created_at, updated_at
              FROM mass_action_job_items WHERE job_id = $1`
	args := []interface{}{jobID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*model.JobItem{}
	for rows.Next() {
		it := &model.JobItem{}
		if err := rows.Scan(&it.ID, &it.JobID, &it.LeadID, &it.Phone, &it.Status,
			&it.ErrorMessage, &it.SentAt, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItemStatus writes the item's new status and adjusts the owning job's
// sent/failed counters in one transaction. sentAt only overwrites the stored
// value when non-nil. When both counter deltas are zero the job's updated_at
// is still refreshed as a liveness signal.
func (r *JobRepository) UpdateItemStatus(jobID, itemID string, status model.ItemStatus, errorMessage *string, sentAt *time.Time) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var prev model.ItemStatus
	err = tx.QueryRow(
		`SELECT status FROM mass_action_job_items WHERE id = $1 AND job_id = $2 FOR UPDATE`,
		itemID, jobID,
	).Scan(&prev)
	if err == sql.ErrNoRows {
		return appErrors.NewItemNotFound(itemID)
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
        UPDATE mass_action_job_items
        SET status = $3,
            error_message = $4,
            sent_at = CASE WHEN $5::timestamp IS NULL THEN sent_at ELSE $5::timestamp END,
            updated_at = NOW()
        WHERE id = $1 AND job_id = $2`,
		itemID, jobID, status, errorMessage, sentAt,
	)
	if err != nil {
		return err
	}

	deltaSent, deltaFailed := counterDeltas(prev, status)
	if deltaSent != 0 || deltaFailed != 0 {
		_, err = tx.Exec(
			`UPDATE mass_action_jobs
             SET sent_items = sent_items + $2, failed_items = failed_items + $3, updated_at = NOW()
             WHERE id = $1`,
			jobID, deltaSent, deltaFailed,
		)
	} else {
		_, err = tx.Exec(`UPDATE mass_action_jobs SET updated_at = NOW() WHERE id = $1`, jobID)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *JobRepository) ItemStatusCounts(jobID string) (map[model.ItemStatus]int, error) {
	rows, err := r.DB.Query(
		`SELECT status, COUNT(*) FROM mass_action_job_items WHERE job_id = $1 GROUP BY status`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[model.ItemStatus]int{
		model.ItemQueued:  0,
		model.ItemSent:    0,
		model.ItemFailed:  0,
		model.ItemSkipped: 0,
	}
	for rows.Next() {
		var status model.ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
