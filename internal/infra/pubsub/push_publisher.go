package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"darshan/internal/domain/service"

	"github.com/pkg/errors"
)

const localSubscription = "projects/local/subscriptions/darshan-notifications"

// pushPublisher POSTs push envelopes straight to a notifier endpoint.
// Development stand-in for a push subscription.
type pushPublisher struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func newPushPublisher(endpoint string, logger *slog.Logger) *pushPublisher {
	return &pushPublisher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("endpoint", endpoint)),
	}
}

func (p *pushPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	env, err := NewPushEnvelope(event, localSubscription)
	if err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if event.RequestID != "" {
		req.Header.Set("X-Request-Id", event.RequestID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "notifier unreachable")
	}
	defer resp.Body.Close()

	// 503 asks for redelivery; there is no redelivery here, so surface it
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("notifier answered %d for event %s", resp.StatusCode, event.EventID)
	}

	p.logger.Debug("Notification event pushed",
		slog.String("event_id", event.EventID),
		slog.String("type", event.Type),
	)

	return nil
}

func (p *pushPublisher) Close() error {
	p.client.CloseIdleConnections()

	return nil
}
