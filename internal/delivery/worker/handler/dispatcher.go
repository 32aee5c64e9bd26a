package handler

import (
	"context"
	"fmt"
	"log/slog"

	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// retryableError wraps an error to indicate the message should be redelivered
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// IsRetryable reports whether err should trigger a redelivery.
func IsRetryable(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// Dispatcher turns notification events into push messages for their recipient.
type Dispatcher struct {
	logger          *slog.Logger
	notificationSvc service.NotificationService
}

// DispatcherParams holds dependencies for the Dispatcher
type DispatcherParams struct {
	fx.In

	Logger          *slog.Logger
	NotificationSvc service.NotificationService
}

func NewDispatcher(params DispatcherParams) *Dispatcher {
	return &Dispatcher{
		logger:          params.Logger,
		notificationSvc: params.NotificationSvc,
	}
}

// Dispatch delivers one event. Malformed events are dropped with a non-retryable
// error; a failed send is retryable.
func (d *Dispatcher) Dispatch(ctx context.Context, event *service.NotificationEvent) error {
	logger := deliverycontext.GetLoggerOrDefault(ctx, d.logger)

	if _, err := uuid.Parse(event.Recipient); err != nil {
		return errors.Wrapf(err, "invalid recipient %q", event.Recipient)
	}

	title, body, ok := notificationContent(event)
	if !ok {
		logger.Warn("[Worker] Unknown notification event type, skipping",
			slog.String("event_id", event.EventID),
			slog.String("type", event.Type),
		)

		return nil
	}

	data := make(map[string]string, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}
	data["event_id"] = event.EventID
	data["type"] = event.Type

	if err := d.notificationSvc.SendToUser(ctx, event.Recipient, title, body, data); err != nil {
		return newRetryableError(errors.WithStack(err))
	}

	logger.Info("[Worker] Notification sent",
		slog.String("event_id", event.EventID),
		slog.String("type", event.Type),
		slog.String("recipient", event.Recipient),
	)

	return nil
}

// notificationContent returns the title and body shown on the device.
func notificationContent(event *service.NotificationEvent) (title, body string, ok bool) {
	purpose := event.Data["purpose"]
	if purpose == "" {
		purpose = "your booking"
	}

	switch event.Type {
	case service.EventBookingCreated:
		return "New booking request", fmt.Sprintf("You have a new request for %s on %s", purpose, event.Data["scheduled_at"]), true
	case service.EventBookingConfirmed:
		return "Booking confirmed", fmt.Sprintf("%s is confirmed", purpose), true
	case service.EventBookingCancelled:
		return "Booking cancelled", fmt.Sprintf("%s was cancelled", purpose), true
	case service.EventBookingCompleted:
		return "Booking completed", fmt.Sprintf("%s is complete", purpose), true
	case service.EventJourneyStarted:
		return "Your provider is on the way", fmt.Sprintf("Track the journey for %s", purpose), true
	case service.EventApplicationDecided:
		if event.Data["decision"] == "approved" {
			return "Application approved", "You can now accept bookings", true
		}

		return "Application reviewed", "Your provider application was not approved", true
	case service.EventProviderRevoked:
		return "Provider access revoked", "You can no longer accept new bookings", true
	default:
		return "", "", false
	}
}
