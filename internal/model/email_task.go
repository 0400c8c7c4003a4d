// internal/model/email_task.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EmailTaskStatus is the delivery task state. SENT and FAILED are terminal;
// processed_at is written exactly once, on the transition into either.
type EmailTaskStatus string

const (
	EmailTaskStatusPending EmailTaskStatus = "PENDING"
	EmailTaskStatusQueued  EmailTaskStatus = "QUEUED"
	EmailTaskStatusSent    EmailTaskStatus = "SENT"
	EmailTaskStatusFailed  EmailTaskStatus = "FAILED"
)

// EmailTask is the delivery attempt lineage for one campaign target. A target
// has at most one non-terminal task at a time; restarting a campaign reuses
// the existing row. The store row is the source of truth; broker messages are
// disposable hints.
type EmailTask struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	CampaignTargetID uuid.UUID       `db:"campaign_target_id" json:"campaign_target_id"`
	Status           EmailTaskStatus `db:"status" json:"status"`
	ScheduledAt      *time.Time      `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Attempts         int             `db:"attempts" json:"attempts"`
	LastError        *string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt      *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}
