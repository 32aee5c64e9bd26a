// Package notification delivers push notifications through Firebase Cloud Messaging.
package notification

import (
	"context"
	"log/slog"
	"time"

	"darshan/config"
	"darshan/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// Booking updates are stale after a day; FCM drops undelivered messages past this.
const messageTTL = 24 * time.Hour

// UserTopic is the FCM topic every device of a user subscribes to.
func UserTopic(userID string) string {
	return "user-" + userID
}

type fcmSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// Params defines the dependencies of the notification service.
type Params struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewNotificationService returns the FCM sender, or a sender that only logs when
// no credentials are configured.
func NewNotificationService(params Params) (service.NotificationService, error) {
	cfg := params.Config.Firebase
	if cfg == nil || cfg.CredentialsPath == "" {
		params.Logger.Info("Firebase credentials not configured, notifications are logged only")

		return logSender{logger: params.Logger}, nil
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(params.Ctx, appCfg, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, errors.Wrap(err, "firebase app")
	}

	client, err := app.Messaging(params.Ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase messaging client")
	}

	return &fcmSender{client: client, logger: params.Logger}, nil
}

func (s *fcmSender) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	ttl := messageTTL
	msg := &messaging.Message{
		Topic:        UserTopic(userID),
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return errors.Wrapf(err, "fcm send to %s", msg.Topic)
	}

	s.logger.DebugContext(ctx, "Notification sent",
		slog.String("user_id", userID),
		slog.String("message_id", id),
	)

	return nil
}

type logSender struct {
	logger *slog.Logger
}

func (s logSender) SendToUser(ctx context.Context, userID, title, body string, _ map[string]string) error {
	s.logger.InfoContext(ctx, "Notification (not delivered)",
		slog.String("user_id", userID),
		slog.String("title", title),
		slog.String("body", body),
	)

	return nil
}
