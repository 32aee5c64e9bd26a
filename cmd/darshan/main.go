// Command darshan serves the booking, approval and tracking API.
package main

import (
	"context"
	"log/slog"

	"darshan/config"
	"darshan/internal/convergence"
	"darshan/internal/delivery"
	"darshan/internal/delivery/api"
	"darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/router/handler"
	"darshan/internal/infra/auth"
	"darshan/internal/infra/cache"
	logs "darshan/internal/infra/log"
	"darshan/internal/infra/payment"
	"darshan/internal/infra/persistence"
	"darshan/internal/infra/persistence/postgres"
	"darshan/internal/infra/pubsub"
	"darshan/internal/infra/qrcode"
	"darshan/internal/infra/redis"
	"darshan/internal/usecase/impl"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			// Registers the auto-migrate start hook before the servers start
			func(*postgres.Migrator) {},
			delivery.Launch,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
		postgres.NewMigrator,
		redis.New,
		cache.NewViewCache,
		convergence.NewSynchronizer,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewBookingRepository,
			postgres.NewAccountRepository,
			postgres.NewProviderProfileRepository,
			postgres.NewTransactionManager,
			persistence.NewLocationSampleRepository,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewJWTService,
			qrcode.NewQRCodeServiceFromConfig,
			payment.NewPaymentVerifier,
		),
		pubsub.Module,
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewViewService,
			impl.NewBookingService,
			impl.NewApprovalService,
			impl.NewTrackingService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewBookingHandler,
			handler.NewTrackingHandler,
			handler.NewAccountHandler,
			handler.NewAdminHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}
