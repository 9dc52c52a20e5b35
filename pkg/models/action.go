package models

import "time"

// ActionStatus tracks a saved action through the operator's workflow.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionDismissed  ActionStatus = "dismissed"
)

// ValidActionStatus reports whether s is one of the supported statuses.
func ValidActionStatus(s ActionStatus) bool {
	switch s {
	case ActionPending, ActionInProgress, ActionCompleted, ActionDismissed:
		return true
	}
	return false
}

// SavedAction is a follow-up item an operator saved to the role's workspace,
// usually distilled from a plan insight.
type SavedAction struct {
	ActionID    string       `json:"action_id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      ActionStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ActionNote is a free-text note attached to a saved action.
type ActionNote struct {
	ID        int64     `json:"id"`
	ActionID  string    `json:"action_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
