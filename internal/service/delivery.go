package service

import (
	"context"

	"ai-sqlnotebook-be/pkg/events"

	"github.com/google/uuid"
)

// RenderingDelivery pushes live updates to the user's rendering client.
// Implemented by the websocket hub.
type RenderingDelivery interface {
	Send(userID uuid.UUID, eventType string, data interface{})
}

// EventPublisher publishes domain events to the bus. Implemented by pkg/nats.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}
