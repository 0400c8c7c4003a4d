package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lurehook/lurehook-backend/internal/model"
)

// RecipientRepositoryInterface is the read surface the pipeline needs from
// the recipient directory; recipient CRUD itself lives outside this service.
type RecipientRepositoryInterface interface {
	Create(rec *model.Recipient) error
	GetByID(id uuid.UUID) (*model.Recipient, error)
	GetForCompany(id, companyID uuid.UUID) (*model.Recipient, error)
}

type RecipientRepository struct {
	DB *sqlx.DB
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)

func (r *RecipientRepository) Create(rec *model.Recipient) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now().UTC()
	query := `
        INSERT INTO recipients (id, company_id, email, first_name, last_name, created_at)
        VALUES (:id, :company_id, :email, :first_name, :last_name, :created_at)
    `
	_, err := r.DB.NamedExec(query, rec)
	return err
}

func (r *RecipientRepository) GetByID(id uuid.UUID) (*model.Recipient, error) {
	var rec model.Recipient
	err := r.DB.Get(&rec, `SELECT * FROM recipients WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) GetForCompany(id, companyID uuid.UUID) (*model.Recipient, error) {
	var rec model.Recipient
	err := r.DB.Get(&rec, `SELECT * FROM recipients WHERE id=$1 AND company_id=$2`, id, companyID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
