// internal/model/job.go
package model

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ValidJobStatus reports whether s is one of the accepted job states.
func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemQueued  ItemStatus = "queued"
	ItemSent    ItemStatus = "sent"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemQueued, ItemSent, ItemFailed, ItemSkipped:
		return true
	}
	return false
}

// Actor identifies who created a job.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Target is one resolved recipient lead with its deduplicated phones.
type Target struct {
	LeadID string   `json:"leadId"`
	Phones []string `json:"phones"`
}

// Throttling is the resolved rate-limit policy frozen on a job.
type Throttling struct {
	DelayMs          int `json:"delayMs"`
	MaxPerMinute     int `json:"maxPerMinute"`
	MaxPerHour       int `json:"maxPerHour"`
	ComputedMinDelay int `json:"computedMinDelay"`
}

// Job is one mass-messaging dispatch campaign. Template, filter and
// throttling are frozen at creation time; later edits to the live template
// never affect an in-flight job.
type Job struct {
	ID               string     `db:"id" json:"id"`
	IdempotencyKey   *string    `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedBy        Actor      `db:"created_by" json:"createdBy"`
	TemplateID       string     `db:"template_id" json:"templateId"`
	TemplateSnapshot Template   `db:"template_snapshot" json:"templateSnapshot"`
	FilterPayload    Filter     `db:"filter_payload" json:"filterPayload"`
	Throttling       Throttling `db:"throttling" json:"throttling"`
	Status           JobStatus  `db:"status" json:"status"`
	TotalLeads       int        `db:"total_leads" json:"totalLeads"`
	TotalItems       int        `db:"total_items" json:"totalItems"`
	SentItems        int        `db:"sent_items" json:"sentItems"`
	FailedItems      int        `db:"failed_items" json:"failedItems"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// JobItem is one (lead, phone) recipient within a job. It starts queued and
// moves exactly once into sent, failed or skipped.
type JobItem struct {
	ID           string     `db:"id" json:"id"`
	JobID        string     `db:"job_id" json:"jobId"`
	LeadID       string     `db:"lead_id" json:"leadId"`
	Phone        string     `db:"phone" json:"phone"`
	Status       ItemStatus `db:"status" json:"status"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	SentAt       *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}
