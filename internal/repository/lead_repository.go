package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/funilzap/crm-backend/internal/model"
)

// LeadRepositoryInterface defines the reads the dispatch engine needs from
// the lead store.
type LeadRepositoryInterface interface {
	GetByID(id string) (*model.Lead, error)
	ListByFunnel(funnelID string) ([]model.Lead, error)
}

type LeadRepository struct {
	DB *sql.DB
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)

const leadColumns = `id, title, client, status, funnel_id, phone, tags, assigned_to, people, created_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*model.Lead, error) {
	var (
		l                        model.Lead
		tags, assignedTo, people []byte
	)
	err := row.Scan(&l.ID, &l.Title, &l.Client, &l.Status, &l.FunnelID, &l.Phone,
		&tags, &assignedTo, &people, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(tags, &l.Tags)
	if len(assignedTo) > 0 {
		_ = json.Unmarshal(assignedTo, &l.AssignedTo)
	}
	_ = json.Unmarshal(people, &l.People)
	return &l, nil
}

func (r *LeadRepository) GetByID(id string) (*model.Lead, error) {
	row := r.DB.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) ListByFunnel(funnelID string) ([]model.Lead, error) {
	rows, err := r.DB.Query(`SELECT `+leadColumns+` FROM leads WHERE funnel_id = $1 ORDER BY created_at ASC`, funnelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}
