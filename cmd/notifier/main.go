// Command notifier turns notification events into push notifications. It accepts
// Pub/Sub push deliveries over HTTP and, with the rabbitmq provider, drains the queue.
package main

import (
	"context"
	"log/slog"

	"darshan/config"
	"darshan/internal/delivery"
	"darshan/internal/delivery/worker"
	"darshan/internal/delivery/worker/handler"
	logs "darshan/internal/infra/log"
	"darshan/internal/infra/notification"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			notification.NewNotificationService,
			handler.NewDispatcher,
			handler.NewPushHandler,
			asDelivery(worker.NewServer),
			asDelivery(worker.NewQueueConsumer),
		),
		fx.Invoke(delivery.Launch),
	).Run()
}

func asDelivery(constructor any) any {
	return fx.Annotate(constructor, fx.ResultTags(`group:"deliveries"`))
}
