// internal/queue/message.go
package queue

import "time"

// Message priorities on the immediate queue (0-10 range).
const (
	PriorityDefault uint8 = 5
	PriorityHigh    uint8 = 9
)

// EmailMessage is the broker message schema shared by the controller,
// scheduler and workers. The body is rendered once, before the first
// enqueue; retries carry it forward unchanged. Attempt starts at 1.
type EmailMessage struct {
	TaskID           string `json:"task_id"`
	CampaignTargetID string `json:"campaign_target_id"`
	RecipientEmail   string `json:"recipient_email"`
	RecipientName    string `json:"recipient_name"`
	Subject          string `json:"subject"`
	BodyHTML         string `json:"body_html"`
	TrackingToken    string `json:"tracking_token"`
	Attempt          int    `json:"attempt"`
}

// BackoffForAttempt selects the retry delay for the given attempt number
// from a step schedule, clamping to the last step once the schedule is
// exhausted. Attempt numbers are 1-based.
func BackoffForAttempt(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return time.Minute
	}
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(delays) {
		i = len(delays) - 1
	}
	return delays[i]
}
