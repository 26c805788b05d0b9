package service

import (
	"context"

	"userapi/internal/domain/entity"
)

// EventPublisher defines the interface for publishing user events to a message bus.
type EventPublisher interface {
	// PublishUserEvent publishes a committed user change for downstream consumers.
	PublishUserEvent(ctx context.Context, event *entity.UserEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
