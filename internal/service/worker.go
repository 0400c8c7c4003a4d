// internal/service/worker.go
package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/queue"
	"github.com/lurehook/lurehook-backend/internal/repository"
)

// Sender performs the actual delivery of one rendered email. It can fail
// transiently; the processor owns retry policy.
type Sender interface {
	Send(msg queue.EmailMessage) error
}

// Outcome tells the consuming loop what to do with the broker delivery.
type Outcome int

const (
	// OutcomeAck removes the message from its source queue. Failures that
	// were re-published onto the retry queue still ack the original, so a
	// message is never requeued by the broker itself.
	OutcomeAck Outcome = iota
	// OutcomeReject rejects without requeue; the broker dead-letters it.
	OutcomeReject
)

// DeliveryProcessor handles one broker message end to end: send, then
// conditionally update the store, then decide the message's fate. All store
// writes are idempotent against redelivery.
type DeliveryProcessor struct {
	Tasks       repository.EmailTaskRepositoryInterface
	Targets     repository.CampaignTargetRepositoryInterface
	Broker      queue.Broker
	Sender      Sender
	MaxRetries  int
	RetryDelays []time.Duration
	Logger      *zap.Logger
}

// Process attempts the delivery described by msg.
func (p *DeliveryProcessor) Process(msg queue.EmailMessage) Outcome {
	taskID, err := uuid.Parse(msg.TaskID)
	if err != nil {
		p.Logger.Error("malformed message: bad task id",
			zap.String("task_id", msg.TaskID), zap.Error(err))
		return OutcomeReject
	}
	targetID, err := uuid.Parse(msg.CampaignTargetID)
	if err != nil {
		p.Logger.Error("malformed message: bad target id",
			zap.String("campaign_target_id", msg.CampaignTargetID), zap.Error(err))
		return OutcomeReject
	}

	if err := p.Sender.Send(msg); err != nil {
		return p.handleFailure(msg, taskID, err)
	}

	now := time.Now().UTC()
	if _, err := p.Tasks.MarkSent(taskID, msg.Attempt, now); err != nil {
		p.Logger.Error("failed to mark task sent",
			zap.String("task_id", msg.TaskID), zap.Error(err))
	}
	if _, err := p.Targets.MarkEmailSent(targetID, now); err != nil {
		p.Logger.Error("failed to mark target email_sent",
			zap.String("campaign_target_id", msg.CampaignTargetID), zap.Error(err))
	}

	p.Logger.Info("email task delivered",
		zap.String("task_id", msg.TaskID),
		zap.Int("attempt", msg.Attempt))
	return OutcomeAck
}

func (p *DeliveryProcessor) handleFailure(msg queue.EmailMessage, taskID uuid.UUID, sendErr error) Outcome {
	if err := p.Tasks.RecordFailure(taskID, msg.Attempt, sendErr.Error()); err != nil {
		p.Logger.Error("failed to record delivery failure",
			zap.String("task_id", msg.TaskID), zap.Error(err))
	}

	if msg.Attempt < p.MaxRetries {
		retry := msg
		retry.Attempt = msg.Attempt + 1
		delay := queue.BackoffForAttempt(p.RetryDelays, msg.Attempt)

		if err := p.Broker.PublishRetry(retry, delay); err != nil {
			// Could not park the retry; reject so the message at least
			// survives in the dead-letter queue instead of vanishing.
			p.Logger.Error("failed to publish retry",
				zap.String("task_id", msg.TaskID), zap.Error(err))
			return OutcomeReject
		}

		p.Logger.Warn("delivery failed, retry scheduled",
			zap.String("task_id", msg.TaskID),
			zap.Int("attempt", msg.Attempt),
			zap.Duration("delay", delay),
			zap.Error(sendErr))
		return OutcomeAck
	}

	now := time.Now().UTC()
	if _, err := p.Tasks.MarkFailed(taskID, msg.Attempt, sendErr.Error(), now); err != nil {
		p.Logger.Error("failed to mark task failed",
			zap.String("task_id", msg.TaskID), zap.Error(err))
	}

	p.Logger.Error("delivery failed permanently",
		zap.String("task_id", msg.TaskID),
		zap.Int("attempts", msg.Attempt),
		zap.Error(sendErr))
	return OutcomeReject
}
