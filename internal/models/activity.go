package models

import "time"

// Действия журнала активности.
const (
	ActionCreated          = "created"
	ActionUpdated          = "updated"
	ActionStatusChanged    = "status_changed"
	ActionClosed           = "closed"
	ActionDeadlineExtended = "deadline_extended"
	ActionAwarded          = "awarded"
	ActionBidReceived      = "bid_received"
	ActionBidWithdrawn     = "bid_withdrawn"
	ActionEvaluationStart  = "evaluation_started"
	ActionSubmitted        = "submitted"
	ActionScored           = "scored"
	ActionRejected         = "rejected"
	ActionWithdrawn        = "withdrawn"
	ActionCommented        = "commented"
)

// ActivityEntry - запись журнала действий, только добавляется.
type ActivityEntry struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"timestamp"`
}

// NewActivity создаёт запись журнала.
func NewActivity(action, description, actor string, at time.Time) ActivityEntry {
	return ActivityEntry{
		Action:      action,
		Description: description,
		Actor:       actor,
		CreatedAt:   at.UTC(),
	}
}
