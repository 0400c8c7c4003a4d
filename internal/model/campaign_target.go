// internal/model/campaign_target.go
package model

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// CampaignTarget is one (campaign, recipient) pairing. The tracking token is
// generated once at creation and is the only credential needed to record the
// recipient's interactions. Each boolean flips false->true at most once; its
// timestamp is written on that transition and never changes afterwards.
type CampaignTarget struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	CampaignID             uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	RecipientID            uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	TrackingToken          string     `db:"tracking_token" json:"tracking_token"`
	EmailSent              bool       `db:"email_sent" json:"email_sent"`
	EmailSentAt            *time.Time `db:"email_sent_at" json:"email_sent_at,omitempty"`
	EmailOpened            bool       `db:"email_opened" json:"email_opened"`
	EmailOpenedAt          *time.Time `db:"email_opened_at" json:"email_opened_at,omitempty"`
	LinkClicked            bool       `db:"link_clicked" json:"link_clicked"`
	LinkClickedAt          *time.Time `db:"link_clicked_at" json:"link_clicked_at,omitempty"`
	CredentialsSubmitted   bool       `db:"credentials_submitted" json:"credentials_submitted"`
	CredentialsSubmittedAt *time.Time `db:"credentials_submitted_at" json:"credentials_submitted_at,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// NewTrackingToken returns an unguessable opaque token (32 random bytes,
// base64url, no padding).
func NewTrackingToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
