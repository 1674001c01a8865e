package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/funilzap/crm-backend/internal/model"
)

type TemplateRepositoryInterface interface {
	GetByID(id string) (*model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)

func (r *TemplateRepository) GetByID(id string) (*model.Template, error) {
	var (
		t       model.Template
		content []byte
	)
	err := r.DB.QueryRow(`SELECT id, name, type, content FROM message_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Type, &content)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &t.Content); err != nil {
		return nil, err
	}
	return &t, nil
}
