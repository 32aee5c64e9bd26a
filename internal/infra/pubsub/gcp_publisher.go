package pubsub

import (
	"context"
	"log/slog"

	"darshan/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// gcpPublisher sends events to a Cloud Pub/Sub topic. Events are ordered per
// recipient, so a confirmation never overtakes the request it answers.
type gcpPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    *slog.Logger
}

func newGCPPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (*gcpPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "pubsub client")
	}

	topic := "projects/" + projectID + "/topics/" + topicID
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic}); err != nil {
		_ = client.Close()

		return nil, errors.Wrapf(err, "topic %s is not reachable", topic)
	}

	publisher := client.Publisher(topicID)
	publisher.EnableMessageOrdering = true

	return &gcpPublisher{
		client:    client,
		publisher: publisher,
		topic:     topic,
		logger:    logger.With(slog.String("topic", topic)),
	}, nil
}

func (p *gcpPublisher) PublishNotificationEvent(ctx context.Context, event *service.NotificationEvent) error {
	payload, attrs, err := encodeEvent(event)
	if err != nil {
		return err
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data:        payload,
		Attributes:  attrs,
		OrderingKey: event.Recipient,
	})

	msgID, err := res.Get(ctx)
	if err != nil {
		// a failed ordered publish pauses the key until resumed
		p.publisher.ResumePublish(event.Recipient)

		return errors.Wrapf(err, "publish %s", event.Type)
	}

	p.logger.Debug("Notification event published",
		slog.String("event_id", event.EventID),
		slog.String("type", event.Type),
		slog.String("message_id", msgID),
	)

	return nil
}

func (p *gcpPublisher) Close() error {
	p.publisher.Stop()

	return errors.WithStack(p.client.Close())
}
