// Package pubsub hands notification events to the message transport named in config.
package pubsub

import (
	"context"
	"log/slog"

	"darshan/config"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// DefaultQueue is the durable queue notification events are routed to.
const DefaultQueue = "darshan.notifications"

// discardPublisher drops events when no transport is configured.
type discardPublisher struct {
	logger *slog.Logger
}

func (p discardPublisher) PublishNotificationEvent(_ context.Context, event *service.NotificationEvent) error {
	p.logger.Debug("Notification transport disabled, event dropped",
		slog.String("event_id", event.EventID),
		slog.String("type", event.Type),
	)

	return nil
}

func (discardPublisher) Close() error { return nil }

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher selects the transport from cfg.PubSub.Provider.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	logger := params.Logger.With(slog.String("component", "publisher"))

	publisher, err := openPublisher(params.Ctx, params.Config.PubSub, logger)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

func openPublisher(ctx context.Context, cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	if cfg == nil || cfg.Provider == "" {
		logger.Info("No notification transport configured")

		return discardPublisher{logger: logger}, nil
	}

	logger = logger.With(slog.String("provider", cfg.Provider))

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("pubsub.localEndpoint is required for the local provider")
		}

		return newPushPublisher(cfg.LocalEndpoint, logger), nil

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return nil, errors.New("pubsub.projectId and pubsub.topicId are required for the google provider")
		}

		return newGCPPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)

	case constants.PubSubProviderRabbitMQ:
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("pubsub.rabbitmqUrl is required for the rabbitmq provider")
		}
		queue := cfg.RabbitMQQueue
		if queue == "" {
			queue = DefaultQueue
		}

		return newRabbitMQPublisher(cfg.RabbitMQURL, queue, logger)
	}

	return nil, errors.Errorf("unknown pubsub provider %q", cfg.Provider)
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
