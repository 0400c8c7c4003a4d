// internal/service/scheduler.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/model"
	"github.com/lurehook/lurehook-backend/internal/queue"
	"github.com/lurehook/lurehook-backend/internal/repository"
)

// Scheduler promotes due, store-resident email tasks into the immediate
// queue on a fixed-period poll. It runs concurrently with the workers
// without coordination: promotion and consumption touch disjoint phases of
// the task state machine, gated by status predicates.
type Scheduler struct {
	Tasks      repository.EmailTaskRepositoryInterface
	Targets    repository.CampaignTargetRepositoryInterface
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Templates  repository.EmailTemplateRepositoryInterface
	Broker     queue.Broker
	Renderer   *Renderer
	Logger     *zap.Logger
	Interval   time.Duration
	BatchSize  int
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info("scheduler started",
		zap.Duration("interval", s.Interval), zap.Int("batch", s.BatchSize))

	for {
		s.RunOnce()
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce promotes one bounded batch of due tasks and returns how many
// were published. Safe to call repeatedly: re-promoting a QUEUED task whose
// message was lost is acceptable at-least-once behavior, and tasks whose
// target already received the email are short-circuited to SENT.
func (s *Scheduler) RunOnce() int {
	now := time.Now().UTC()
	tasks, err := s.Tasks.ListDue(now, s.BatchSize)
	if err != nil {
		s.Logger.Error("failed to list due tasks", zap.Error(err))
		return 0
	}

	promoted := 0
	for i := range tasks {
		if err := s.promote(&tasks[i], now); err != nil {
			s.Logger.Warn("failed to promote task",
				zap.String("task_id", tasks[i].ID.String()), zap.Error(err))
			continue
		}
		promoted++
	}

	if promoted > 0 {
		s.Logger.Info("promoted due tasks", zap.Int("count", promoted))
	}
	return promoted
}

func (s *Scheduler) promote(task *model.EmailTask, now time.Time) error {
	target, err := s.Targets.GetByID(task.CampaignTargetID)
	if err != nil {
		return err
	}
	if target == nil {
		_, err := s.Tasks.MarkFailed(task.ID, task.Attempts, "campaign target not found", now)
		return err
	}

	// The send already landed (e.g. the worker's ack raced a previous
	// promotion); reconcile the task instead of republishing.
	if target.EmailSent {
		_, err := s.Tasks.MarkSent(task.ID, task.Attempts, now)
		return err
	}

	campaign, err := s.Campaigns.GetByID(target.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil || campaign.TemplateID == nil {
		_, err := s.Tasks.MarkFailed(task.ID, task.Attempts, "campaign or template missing", now)
		return err
	}
	template, err := s.Templates.GetByID(*campaign.TemplateID)
	if err != nil {
		return err
	}
	recipient, err := s.Recipients.GetByID(target.RecipientID)
	if err != nil {
		return err
	}
	if template == nil || recipient == nil {
		_, err := s.Tasks.MarkFailed(task.ID, task.Attempts, "template or recipient missing", now)
		return err
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

	// Publish before the status flip: if the publish fails the task stays
	// due and the next poll retries it.
	if err := s.Broker.PublishEmailTask(msg, true, queue.PriorityDefault); err != nil {
		return err
	}

	if task.Status == model.EmailTaskStatusPending {
		if _, err := s.Tasks.TransitionToQueued(task.ID); err != nil {
			return err
		}
	}

	// A scheduled campaign whose first task got promoted is now running.
	if campaign.Status == model.CampaignStatusScheduled {
		if _, err := s.Campaigns.MarkRunning(campaign.ID, now); err != nil {
			return err
		}
	}

	return nil
}
