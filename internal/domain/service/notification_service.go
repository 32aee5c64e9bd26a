package service

import (
	"context"
)

// NotificationService defines the interface for push notification services
type NotificationService interface {
	// SendToUser pushes a notification to every device subscribed to the user's topic
	SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error
}
