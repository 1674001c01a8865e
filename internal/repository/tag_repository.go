package repository

import (
	"database/sql"

	"github.com/funilzap/crm-backend/internal/model"
)

type TagRepositoryInterface interface {
	ListAll() ([]model.Tag, error)
}

type TagRepository struct {
	DB *sql.DB
}

var _ TagRepositoryInterface = (*TagRepository)(nil)

func (r *TagRepository) ListAll() ([]model.Tag, error) {
	rows, err := r.DB.Query(`SELECT id, name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []model.Tag{}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
