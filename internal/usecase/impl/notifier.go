package impl

import (
	"context"
	"log/slog"
	"time"

	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/service"

	"github.com/google/uuid"
)

const notifyTimeout = 10 * time.Second

// notifier publishes notification events in the background. Failures are logged only;
// the mutation that triggered the event has already committed.
type notifier struct {
	publisher service.EventPublisher
	logger    *slog.Logger
}

func newNotifier(publisher service.EventPublisher, logger *slog.Logger) *notifier {
	return &notifier{publisher: publisher, logger: logger}
}

// notify publishes to every recipient from a detached goroutine.
func (n *notifier) notify(ctx context.Context, eventType string, data map[string]string, recipients ...uuid.UUID) {
	if n == nil || n.publisher == nil {
		return
	}

	requestID := deliverycontext.GetRequestIDFromContext(ctx)
	logger := deliverycontext.GetLoggerOrDefault(ctx, n.logger)
	var actor string
	if id, ok := deliverycontext.ActorFromContext(ctx); ok {
		actor = id.String()
	}
	detached := context.WithoutCancel(ctx)

	go func() {
		pubCtx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()

		for _, recipient := range recipients {
			event := &service.NotificationEvent{
				RequestID: requestID,
				EventID:   uuid.NewString(),
				Type:      eventType,
				Recipient: recipient.String(),
				Actor:     actor,
				Data:      data,
			}

			if err := n.publisher.PublishNotificationEvent(pubCtx, event); err != nil {
				logger.Warn("Failed to publish notification event",
					slog.String("type", eventType),
					slog.String("recipient", event.Recipient),
					slog.Any("error", err),
				)
			}
		}
	}()
}
