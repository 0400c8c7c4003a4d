// internal/service/campaign_service.go
package service

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/lurehook/lurehook-backend/internal/errors"
	"github.com/lurehook/lurehook-backend/internal/model"
	"github.com/lurehook/lurehook-backend/internal/queue"
	"github.com/lurehook/lurehook-backend/internal/repository"
)

// CampaignService drives the campaign lifecycle and materializes email
// tasks and broker messages for each target. Every operation is scoped to
// the acting company; the store row, not the broker message, is the source
// of truth for task state.
type CampaignService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Targets    repository.CampaignTargetRepositoryInterface
	Tasks      repository.EmailTaskRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Templates  repository.EmailTemplateRepositoryInterface
	Broker     queue.Broker
	Renderer   *Renderer
	Logger     *zap.Logger
}

type CreateCampaignInput struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	TemplateID   *uuid.UUID  `json:"template_id"`
	RecipientIDs []uuid.UUID `json:"recipient_ids"`
}

// CampaignStatsResult is the reporting view over one campaign's targets.
type CampaignStatsResult struct {
	CampaignID   uuid.UUID            `json:"campaign_id"`
	CampaignName string               `json:"campaign_name"`
	Status       model.CampaignStatus `json:"status"`
	model.CampaignStats
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	SubmissionRate float64 `json:"submission_rate"`
}

// campaignForCompany loads a campaign and enforces tenant ownership.
func (s *CampaignService) campaignForCompany(companyID, campaignID uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, appErrors.NewNotFound("campaign", campaignID.String())
	}
	if campaign.CompanyID != companyID {
		return nil, appErrors.NewAuthorization("campaign belongs to another company")
	}
	return campaign, nil
}

// Create creates a DRAFT campaign and attaches initial targets. Recipients
// outside the acting company are skipped.
func (s *CampaignService) Create(companyID uuid.UUID, input CreateCampaignInput) (*model.Campaign, error) {
	if input.Name == "" {
		return nil, appErrors.NewValidation("campaign name is required")
	}

	campaign := &model.Campaign{
		CompanyID:   companyID,
		Name:        input.Name,
		Description: input.Description,
		TemplateID:  input.TemplateID,
		PhishingURL: s.Renderer.PhishingURL(),
		Status:      model.CampaignStatusDraft,
	}
	if err := s.Campaigns.Create(campaign); err != nil {
		return nil, err
	}

	for _, recipientID := range input.RecipientIDs {
		if err := s.addTarget(companyID, campaign.ID, recipientID); err != nil {
			return nil, err
		}
	}

	return campaign, nil
}

func (s *CampaignService) addTarget(companyID, campaignID, recipientID uuid.UUID) error {
	recipient, err := s.Recipients.GetForCompany(recipientID, companyID)
	if err != nil {
		return err
	}
	if recipient == nil {
		s.Logger.Warn("skipping recipient outside company",
			zap.String("recipient_id", recipientID.String()))
		return nil
	}
	exists, err := s.Targets.ExistsForRecipient(campaignID, recipientID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Targets.Create(&model.CampaignTarget{
		CampaignID:  campaignID,
		RecipientID: recipientID,
	})
}

// AddTargets attaches recipients to a DRAFT campaign. Duplicates and
// out-of-company recipients are skipped silently.
func (s *CampaignService) AddTargets(companyID, campaignID uuid.UUID, recipientIDs []uuid.UUID) ([]model.CampaignTarget, error) {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidState("can only add targets to draft campaigns")
	}

	for _, recipientID := range recipientIDs {
		if err := s.addTarget(companyID, campaignID, recipientID); err != nil {
			return nil, err
		}
	}

	return s.Targets.ListByCampaign(campaignID)
}

// Delete removes a DRAFT campaign; targets cascade. Any other status is an
// invalid state.
func (s *CampaignService) Delete(companyID, campaignID uuid.UUID) error {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return appErrors.NewInvalidState("can only delete draft campaigns")
	}
	deleted, err := s.Campaigns.Delete(campaignID)
	if err != nil {
		return err
	}
	if !deleted {
		return appErrors.NewInvalidState("campaign left draft status")
	}
	return nil
}

// validateExecutable checks the shared schedule/start preconditions and
// returns the targets and resolved template.
func (s *CampaignService) validateExecutable(campaign *model.Campaign) ([]model.CampaignTarget, *model.EmailTemplate, error) {
	targets, err := s.Targets.ListByCampaign(campaign.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(targets) == 0 {
		return nil, nil, appErrors.NewValidation("campaign must have at least one target")
	}
	if campaign.TemplateID == nil {
		return nil, nil, appErrors.NewValidation("campaign must have an email template")
	}
	template, err := s.Templates.GetByID(*campaign.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if template == nil {
		return nil, nil, appErrors.NewValidation("email template not found")
	}
	return targets, template, nil
}

// Schedule moves a DRAFT campaign to SCHEDULED and creates one PENDING
// EmailTask per target with the requested send time. Nothing is published
// to the broker; the scheduler promotes the tasks when they come due.
func (s *CampaignService) Schedule(companyID, campaignID uuid.UUID, at time.Time) (*model.Campaign, error) {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft {
		return nil, appErrors.NewInvalidState("can only schedule draft campaigns")
	}
	if !at.After(time.Now()) {
		return nil, appErrors.NewValidation("scheduled time must be in the future")
	}

	targets, _, err := s.validateExecutable(campaign)
	if err != nil {
		return nil, err
	}

	moved, err := s.Campaigns.MarkScheduled(campaignID, at)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, appErrors.NewInvalidState("campaign left draft status")
	}

	for _, target := range targets {
		task := &model.EmailTask{
			CampaignTargetID: target.ID,
			Status:           model.EmailTaskStatusPending,
			ScheduledAt:      &at,
		}
		if err := s.Tasks.Create(task); err != nil {
			return nil, err
		}
	}

	campaign.Status = model.CampaignStatusScheduled
	campaign.ScheduledAt = &at
	return campaign, nil
}

// Start moves a DRAFT or SCHEDULED campaign to RUNNING, reuses or creates
// one QUEUED EmailTask per target, renders each body once and publishes to
// the immediate queue with high priority. A publish failure is logged and
// the task stays QUEUED in the store so the scheduler sweep re-publishes
// it; it must never silently disappear.
func (s *CampaignService) Start(companyID, campaignID uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft && campaign.Status != model.CampaignStatusScheduled {
		return nil, appErrors.NewInvalidState("campaign is already running or completed")
	}

	targets, template, err := s.validateExecutable(campaign)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	moved, err := s.Campaigns.MarkRunning(campaignID, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, appErrors.NewInvalidState("campaign is already running or completed")
	}

	for _, target := range targets {
		if err := s.dispatchTarget(&target, template, now); err != nil {
			return nil, err
		}
	}

	campaign.Status = model.CampaignStatusRunning
	campaign.StartedAt = &now
	return campaign, nil
}

func (s *CampaignService) dispatchTarget(target *model.CampaignTarget, template *model.EmailTemplate, now time.Time) error {
	recipient, err := s.Recipients.GetByID(target.RecipientID)
	if err != nil {
		return err
	}
	if recipient == nil {
		s.Logger.Warn("target has no recipient", zap.String("target_id", target.ID.String()))
		return nil
	}

	task, err := s.Tasks.GetByTargetID(target.ID)
	if err != nil {
		return err
	}
	if task != nil {
		requeued, err := s.Tasks.Requeue(task.ID, now)
		if err != nil {
			return err
		}
		if !requeued {
			// Already SENT; nothing left to deliver for this target.
			return nil
		}
	} else {
		task = &model.EmailTask{
			CampaignTargetID: target.ID,
			Status:           model.EmailTaskStatusQueued,
			ScheduledAt:      &now,
		}
		if err := s.Tasks.Create(task); err != nil {
			return err
		}
	}

	msg := queue.EmailMessage{
		TaskID:           task.ID.String(),
		CampaignTargetID: target.ID.String(),
		RecipientEmail:   recipient.Email,
		RecipientName:    recipient.FullName(),
		Subject:          s.Renderer.PersonalizeSubject(template.Subject, recipient, target.TrackingToken),
		BodyHTML:         s.Renderer.PersonalizeBody(template.BodyHTML, recipient, target.TrackingToken),
		TrackingToken:    target.TrackingToken,
		Attempt:          1,
	}

	if err := s.Broker.PublishEmailTask(msg, true, queue.PriorityHigh); err != nil {
		// Recoverable: the task stays QUEUED in the store and the
		// scheduler sweep re-publishes it.
		s.Logger.Error("failed to publish email task, leaving task queued",
			zap.String("task_id", task.ID.String()), zap.Error(err))
	}
	return nil
}

// Stop moves a RUNNING campaign to COMPLETED. In-flight tasks are not
// cancelled; already-queued sends may still complete afterwards.
func (s *CampaignService) Stop(companyID, campaignID uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusRunning {
		return nil, appErrors.NewInvalidState("can only stop running campaigns")
	}

	now := time.Now().UTC()
	moved, err := s.Campaigns.MarkCompleted(campaignID, now)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, appErrors.NewInvalidState("campaign is no longer running")
	}

	campaign.Status = model.CampaignStatusCompleted
	campaign.CompletedAt = &now
	return campaign, nil
}

// Get returns one campaign, tenant-scoped.
func (s *CampaignService) Get(companyID, campaignID uuid.UUID) (*model.Campaign, error) {
	return s.campaignForCompany(companyID, campaignID)
}

// List returns the company's campaigns with pagination metadata.
func (s *CampaignService) List(companyID uuid.UUID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.Campaigns.List(companyID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

// Stats aggregates target interaction counters and rates for a campaign.
func (s *CampaignService) Stats(companyID, campaignID uuid.UUID) (*CampaignStatsResult, error) {
	campaign, err := s.campaignForCompany(companyID, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.Targets.Stats(campaignID)
	if err != nil {
		return nil, err
	}

	result := &CampaignStatsResult{
		CampaignID:    campaign.ID,
		CampaignName:  campaign.Name,
		Status:        campaign.Status,
		CampaignStats: *stats,
	}
	if stats.EmailsSent > 0 {
		result.OpenRate = rate(stats.EmailsOpened, stats.EmailsSent)
		result.ClickRate = rate(stats.LinksClicked, stats.EmailsSent)
		result.SubmissionRate = rate(stats.CredentialsSubmitted, stats.EmailsSent)
	}
	return result, nil
}

func rate(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*10000) / 100
}
