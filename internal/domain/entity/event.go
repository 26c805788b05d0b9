package entity

import "time"

// UserEventType names a user lifecycle event.
type UserEventType string

const (
	UserEventCreated UserEventType = "user.created"
	UserEventUpdated UserEventType = "user.updated"
)

// UserEvent is published after a user change has been committed.
type UserEvent struct {
	Type       UserEventType `json:"type"`
	RequestID  string        `json:"request_id,omitempty"` // For distributed tracing
	UserID     int64         `json:"user_id"`
	Username   string        `json:"username"`
	Email      string        `json:"email"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewUserEvent builds an event snapshot of user.
func NewUserEvent(eventType UserEventType, requestID string, user *User, at time.Time) *UserEvent {
	return &UserEvent{
		Type:       eventType,
		RequestID:  requestID,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		OccurredAt: at.UTC(),
	}
}
