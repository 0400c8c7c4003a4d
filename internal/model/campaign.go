// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the campaign lifecycle state. Transitions are strictly
// forward: DRAFT -> SCHEDULED -> RUNNING -> COMPLETED (SCHEDULED may be
// skipped when a campaign is started directly).
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusRunning   CampaignStatus = "RUNNING"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

type Campaign struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description,omitempty"`
	TemplateID  *uuid.UUID     `db:"template_id" json:"template_id,omitempty"`
	PhishingURL string         `db:"phishing_url" json:"phishing_url,omitempty"`
	Status      CampaignStatus `db:"status" json:"status"`
	ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CampaignStats aggregates target interaction counters for one campaign.
type CampaignStats struct {
	TotalTargets         int `db:"total" json:"total_targets"`
	EmailsSent           int `db:"sent" json:"emails_sent"`
	EmailsOpened         int `db:"opened" json:"emails_opened"`
	LinksClicked         int `db:"clicked" json:"links_clicked"`
	CredentialsSubmitted int `db:"submitted" json:"credentials_submitted"`
}
