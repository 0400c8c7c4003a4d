package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lurehook/lurehook-backend/internal/model"
)

type CampaignTargetRepositoryInterface interface {
	Create(t *model.CampaignTarget) error
	GetByID(id uuid.UUID) (*model.CampaignTarget, error)
	ListByCampaign(campaignID uuid.UUID) ([]model.CampaignTarget, error)
	ExistsForRecipient(campaignID, recipientID uuid.UUID) (bool, error)
	Stats(campaignID uuid.UUID) (*model.CampaignStats, error)

	// The four interaction marks are write-once: each is a conditional
	// update on the boolean being false, returning whether this call made
	// the transition. A repeat call or unknown token/id is a no-op.
	MarkEmailSent(id uuid.UUID, at time.Time) (bool, error)
	MarkOpened(token string, at time.Time) (bool, error)
	MarkClicked(token string, at time.Time) (bool, error)
	MarkSubmitted(token string, at time.Time) (bool, error)
}

type CampaignTargetRepository struct {
	DB *sqlx.DB
}

var _ CampaignTargetRepositoryInterface = (*CampaignTargetRepository)(nil)

func (r *CampaignTargetRepository) Create(t *model.CampaignTarget) error {
	now := time.Now().UTC()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.TrackingToken == "" {
		token, err := model.NewTrackingToken()
		if err != nil {
			return err
		}
		t.TrackingToken = token
	}
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
        INSERT INTO campaign_targets (id, campaign_id, recipient_id, tracking_token, created_at, updated_at)
        VALUES (:id, :campaign_id, :recipient_id, :tracking_token, :created_at, :updated_at)
    `
	_, err := r.DB.NamedExec(query, t)
	return err
}

func (r *CampaignTargetRepository) GetByID(id uuid.UUID) (*model.CampaignTarget, error) {
	var t model.CampaignTarget
	err := r.DB.Get(&t, `SELECT * FROM campaign_targets WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *CampaignTargetRepository) ListByCampaign(campaignID uuid.UUID) ([]model.CampaignTarget, error) {
	targets := []model.CampaignTarget{}
	err := r.DB.Select(&targets, `SELECT * FROM campaign_targets WHERE campaign_id=$1 ORDER BY created_at`, campaignID)
	return targets, err
}

func (r *CampaignTargetRepository) ExistsForRecipient(campaignID, recipientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.Get(&exists, `
        SELECT EXISTS (SELECT 1 FROM campaign_targets WHERE campaign_id=$1 AND recipient_id=$2)
    `, campaignID, recipientID)
	return exists, err
}

func (r *CampaignTargetRepository) Stats(campaignID uuid.UUID) (*model.CampaignStats, error) {
	var stats model.CampaignStats
	err := r.DB.Get(&stats, `
        SELECT
            COUNT(*)                                     AS total,
            COUNT(*) FILTER (WHERE email_sent)           AS sent,
            COUNT(*) FILTER (WHERE email_opened)         AS opened,
            COUNT(*) FILTER (WHERE link_clicked)         AS clicked,
            COUNT(*) FILTER (WHERE credentials_submitted) AS submitted
        FROM campaign_targets WHERE campaign_id=$1
    `, campaignID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *CampaignTargetRepository) MarkEmailSent(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaign_targets SET email_sent=TRUE, email_sent_at=$2, updated_at=NOW()
        WHERE id=$1 AND email_sent=FALSE
    `, id, at)
	return oneRowAffected(res, err)
}

func (r *CampaignTargetRepository) MarkOpened(token string, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaign_targets SET email_opened=TRUE, email_opened_at=$2, updated_at=NOW()
        WHERE tracking_token=$1 AND email_opened=FALSE
    `, token, at)
	return oneRowAffected(res, err)
}

func (r *CampaignTargetRepository) MarkClicked(token string, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaign_targets SET link_clicked=TRUE, link_clicked_at=$2, updated_at=NOW()
        WHERE tracking_token=$1 AND link_clicked=FALSE
    `, token, at)
	return oneRowAffected(res, err)
}

func (r *CampaignTargetRepository) MarkSubmitted(token string, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE campaign_targets SET credentials_submitted=TRUE, credentials_submitted_at=$2, updated_at=NOW()
        WHERE tracking_token=$1 AND credentials_submitted=FALSE
    `, token, at)
	return oneRowAffected(res, err)
}
