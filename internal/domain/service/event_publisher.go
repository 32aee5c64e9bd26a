package service

import (
	"context"
)

// Notification event types
const (
	EventBookingCreated     = "booking.created"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingCompleted   = "booking.completed"
	EventJourneyStarted     = "booking.journey_started"
	EventApplicationDecided = "provider.application_decided"
	EventProviderRevoked    = "provider.revoked"
)

// NotificationEvent is the {type, recipient, data} payload handed to the notification collaborator.
type NotificationEvent struct {
	RequestID string            `json:"request_id,omitempty"` // For distributed tracing
	EventID   string            `json:"event_id"`
	Type      string            `json:"type"`
	Recipient string            `json:"recipient"` // User ID of the account to notify
	Actor     string            `json:"actor,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishNotificationEvent publishes a notification event for async processing
	PublishNotificationEvent(ctx context.Context, event *NotificationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
