package delivery

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
)

// LaunchParams collects every Delivery provided into the "deliveries" group.
type LaunchParams struct {
	fx.In

	Lc         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Ctx        context.Context
	Logger     *slog.Logger
	Deliveries []Delivery `group:"deliveries"`
}

// Launch starts every delivery once the rest of the app has started. The first one to
// fail shuts the whole app down so the remaining OnStop hooks still run.
func Launch(p LaunchParams) {
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, d := range p.Deliveries {
				go serve(p, d)
			}

			return nil
		},
	})
}

func serve(p LaunchParams, d Delivery) {
	err := d.Serve(p.Ctx)
	if err == nil {
		return
	}

	p.Logger.Error("Delivery stopped with error", slog.Any("error", err))
	if err := p.Shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
		p.Logger.Error("Shutdown request failed", slog.Any("error", err))
		os.Exit(1)
	}
}
