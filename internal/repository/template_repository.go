package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lurehook/lurehook-backend/internal/model"
)

// EmailTemplateRepositoryInterface is the read surface the pipeline needs
// from template storage; template CRUD lives outside this service.
type EmailTemplateRepositoryInterface interface {
	Create(t *model.EmailTemplate) error
	GetByID(id uuid.UUID) (*model.EmailTemplate, error)
}

type EmailTemplateRepository struct {
	DB *sqlx.DB
}

var _ EmailTemplateRepositoryInterface = (*EmailTemplateRepository)(nil)

func (r *EmailTemplateRepository) Create(t *model.EmailTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	query := `
        INSERT INTO email_templates (id, company_id, name, subject, body_html, created_at)
        VALUES (:id, :company_id, :name, :subject, :body_html, :created_at)
    `
	_, err := r.DB.NamedExec(query, t)
	return err
}

func (r *EmailTemplateRepository) GetByID(id uuid.UUID) (*model.EmailTemplate, error) {
	var t model.EmailTemplate
	err := r.DB.Get(&t, `SELECT * FROM email_templates WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
