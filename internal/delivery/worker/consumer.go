package worker

import (
	"context"
	"log/slog"
	"time"

	"darshan/config"
	"darshan/internal/delivery"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/delivery/worker/handler"
	"darshan/internal/domain/constants"
	"darshan/internal/infra/pubsub"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
)

const (
	consumerPrefetch   = 50
	consumerMaxBackoff = 30 * time.Second
)

// queueConsumer drains notification events from RabbitMQ when it is the configured provider.
type queueConsumer struct {
	url        string
	queue      string
	enabled    bool
	logger     *slog.Logger
	dispatcher *handler.Dispatcher

	// cancelled by the fx stop hook
	stopped context.Context
}

// ConsumerParams holds dependencies for the queue consumer
type ConsumerParams struct {
	fx.In

	Lc         fx.Lifecycle
	Cfg        *config.Config
	Logger     *slog.Logger
	Dispatcher *handler.Dispatcher
}

// NewQueueConsumer creates the RabbitMQ consumer delivery.
func NewQueueConsumer(params ConsumerParams) (delivery.Delivery, error) {
	stopped, stop := context.WithCancel(context.Background())
	c := &queueConsumer{
		logger:     params.Logger,
		dispatcher: params.Dispatcher,
		stopped:    stopped,
	}
	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			stop()

			return nil
		},
	})

	cfg := params.Cfg.PubSub
	if cfg == nil || cfg.Provider != constants.PubSubProviderRabbitMQ {
		return c, nil
	}
	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq url is required for rabbitmq provider")
	}

	c.enabled = true
	c.url = cfg.RabbitMQURL
	c.queue = cfg.RabbitMQQueue
	if c.queue == "" {
		c.queue = pubsub.DefaultQueue
	}

	return c, nil
}

// Serve reconnects with exponential backoff until ctx is done.
func (c *queueConsumer) Serve(ctx context.Context) error {
	if !c.enabled {
		c.logger.Info("RabbitMQ consumer disabled for this pubsub provider")

		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(c.stopped, cancel)()

	c.logger.Info("Starting RabbitMQ consumer", slog.String("queue", c.queue))

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("RabbitMQ dial failed",
				slog.Any("error", err),
				slog.Duration("retry_in", backoff),
			)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, consumerMaxBackoff)

			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("RabbitMQ consume loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *queueConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		c.logger.Warn("RabbitMQ set QoS failed", slog.Any("error", err))
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "queue declare %s", c.queue)
	}

	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "queue consume %s", c.queue)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *queueConsumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := pubsub.DecodeEvent(d.Body)
	if err != nil {
		c.logger.Error("[Worker] Failed to parse notification event", slog.Any("error", err))
		_ = d.Nack(false, false)

		return
	}

	requestID := event.RequestID
	if v, ok := d.Headers[pubsub.AttrRequestID].(string); ok && v != "" {
		requestID = v
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	reqLogger := c.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	if err := c.dispatcher.Dispatch(ctx, event); err != nil {
		retry := handler.IsRetryable(err) && !d.Redelivered
		reqLogger.Error("[Worker] Failed to process notification",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
			slog.Bool("requeue", retry),
		)
		_ = d.Nack(false, retry)

		return
	}

	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
