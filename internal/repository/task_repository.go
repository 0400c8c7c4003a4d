package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lurehook/lurehook-backend/internal/model"
)

type EmailTaskRepositoryInterface interface {
	Create(t *model.EmailTask) error
	GetByID(id uuid.UUID) (*model.EmailTask, error)
	GetByTargetID(targetID uuid.UUID) (*model.EmailTask, error)
	ListDue(now time.Time, limit int) ([]model.EmailTask, error)

	// TransitionToQueued moves PENDING -> QUEUED. Under concurrent callers
	// exactly one succeeds; the rest see false.
	TransitionToQueued(id uuid.UUID) (bool, error)
	// Requeue reuses an existing non-SENT task row for a campaign restart.
	Requeue(id uuid.UUID, at time.Time) (bool, error)
	// MarkSent/MarkFailed are terminal transitions; processed_at is written
	// here and never again. Both are no-ops on already-terminal rows.
	MarkSent(id uuid.UUID, attempts int, at time.Time) (bool, error)
	MarkFailed(id uuid.UUID, attempts int, lastError string, at time.Time) (bool, error)
	// RecordFailure bumps attempts/last_error without changing status.
	// Attempts never decrease, even on message redelivery.
	RecordFailure(id uuid.UUID, attempts int, lastError string) error
}

type EmailTaskRepository struct {
	DB *sqlx.DB
}

var _ EmailTaskRepositoryInterface = (*EmailTaskRepository)(nil)

func (r *EmailTaskRepository) Create(t *model.EmailTask) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = model.EmailTaskStatusPending
	}
	t.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO email_tasks (id, campaign_target_id, status, scheduled_at, attempts, created_at)
        VALUES (:id, :campaign_target_id, :status, :scheduled_at, :attempts, :created_at)
    `
	_, err := r.DB.NamedExec(query, t)
	return err
}

func (r *EmailTaskRepository) GetByID(id uuid.UUID) (*model.EmailTask, error) {
	var t model.EmailTask
	err := r.DB.Get(&t, `SELECT * FROM email_tasks WHERE id=$1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *EmailTaskRepository) GetByTargetID(targetID uuid.UUID) (*model.EmailTask, error) {
	var t model.EmailTask
	err := r.DB.Get(&t, `
        SELECT * FROM email_tasks WHERE campaign_target_id=$1 ORDER BY created_at DESC LIMIT 1
    `, targetID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *EmailTaskRepository) ListDue(now time.Time, limit int) ([]model.EmailTask, error) {
	tasks := []model.EmailTask{}
	err := r.DB.Select(&tasks, `
        SELECT * FROM email_tasks
        WHERE status IN ($1, $2) AND scheduled_at <= $3
        ORDER BY scheduled_at
        LIMIT $4
    `, model.EmailTaskStatusPending, model.EmailTaskStatusQueued, now, limit)
	return tasks, err
}

func (r *EmailTaskRepository) TransitionToQueued(id uuid.UUID) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_tasks SET status=$2 WHERE id=$1 AND status=$3
    `, id, model.EmailTaskStatusQueued, model.EmailTaskStatusPending)
	return oneRowAffected(res, err)
}

func (r *EmailTaskRepository) Requeue(id uuid.UUID, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_tasks SET status=$2, scheduled_at=$3, last_error=NULL, processed_at=NULL
        WHERE id=$1 AND status <> $4
    `, id, model.EmailTaskStatusQueued, at, model.EmailTaskStatusSent)
	return oneRowAffected(res, err)
}

func (r *EmailTaskRepository) MarkSent(id uuid.UUID, attempts int, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_tasks
        SET status=$2, attempts=GREATEST(attempts, $3), processed_at=$4
        WHERE id=$1 AND status IN ($5, $6)
    `, id, model.EmailTaskStatusSent, attempts, at,
		model.EmailTaskStatusPending, model.EmailTaskStatusQueued)
	return oneRowAffected(res, err)
}

func (r *EmailTaskRepository) MarkFailed(id uuid.UUID, attempts int, lastError string, at time.Time) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE email_tasks
        SET status=$2, attempts=GREATEST(attempts, $3), last_error=$4, processed_at=$5
        WHERE id=$1 AND status IN ($6, $7)
    `, id, model.EmailTaskStatusFailed, attempts, lastError, at,
		model.EmailTaskStatusPending, model.EmailTaskStatusQueued)
	return oneRowAffected(res, err)
}

func (r *EmailTaskRepository) RecordFailure(id uuid.UUID, attempts int, lastError string) error {
	_, err := r.DB.Exec(`
        UPDATE email_tasks SET attempts=GREATEST(attempts, $2), last_error=$3 WHERE id=$1
    `, id, attempts, lastError)
	return err
}
