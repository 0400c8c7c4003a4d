package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lurehook/lurehook-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id uuid.UUID) (*model.Campaign, error)
	List(companyID uuid.UUID, offset, limit int, status string) ([]model.Campaign, int, error)

	// Lifecycle transitions are conditional single-row updates guarded by
	// the current status, so concurrent writers cannot move a campaign
	// backwards. Each returns whether the row was transitioned.
	MarkScheduled(id uuid.UUID, at time.Time) (bool, error)
	MarkRunning(id uuid.UUID, at time.Time) (bool, error)
	MarkCompleted(id uuid.UUID, at time.Time) (bool, error)

	// Delete removes a DRAFT campaign; targets cascade.
	Delete(id uuid.UUID) (bool, error)
}

type CampaignRepository struct {
	DB *sqlx.DB
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

func (r *CampaignRepository) Create(c *model.Campaign) error {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
        INSERT INTO campaigns (id, company_id, name, description, template_id, phishing_url, status, scheduled_at, created_at, updated_at)
        VALUES (:id, :company_id, :name, :description, :template_id, :phishing_url, :status, :scheduled_at, :created_at, :updated_at)
    `
	_, err := r.DB.NamedExec(query, c)
	return err
}

func (r *CampaignRepository) GetByID(id uuid.UUID) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.Get(&c, `SELECT * FROM campaigns WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) List(companyID uuid.UUID, offset, limit int, status string) ([]model.Campaign, int, error) {
	campaigns := []model.Campaign{}
	query := `SELECT * FROM campaigns WHERE company_id=$1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE company_id=$1`
	args := []interface{}{companyID}

	if status != "" {
		query += ` AND status=$2`
		countQuery += ` AND status=$2`
		args = append(args, status)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	if err := r.DB.Select(&campaigns, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) MarkScheduled(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaigns SET status=$2, scheduled_at=$3, updated_at=NOW()
        WHERE id=$1 AND status=$4
    `, id, model.CampaignStatusScheduled, at, model.CampaignStatusDraft)
	return oneRowAffected(res, err)
}

func (r *CampaignRepository) MarkRunning(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaigns SET status=$2, started_at=$3, updated_at=NOW()
        WHERE id=$1 AND status IN ($4, $5)
    `, id, model.CampaignStatusRunning, at, model.CampaignStatusDraft, model.CampaignStatusScheduled)
	return oneRowAffected(res, err)
}

func (r *CampaignRepository) MarkCompleted(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaigns SET status=$2, completed_at=$3, updated_at=NOW()
        WHERE id=$1 AND status=$4
    `, id, model.CampaignStatusCompleted, at, model.CampaignStatusRunning)
	return oneRowAffected(res, err)
}

func (r *CampaignRepository) Delete(id uuid.UUID) (bool, error) {
	res, err := r.DB.Exec(`DELETE FROM campaigns WHERE id=$1 AND status=$2`, id, model.CampaignStatusDraft)
	return oneRowAffected(res, err)
}

func oneRowAffected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
