package worker

import (
	"log/slog"
	"net/http"

	"darshan/config"
	"darshan/internal/delivery"
	"darshan/internal/delivery/worker/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// ServerParams holds dependencies for the notifier's push endpoint
type ServerParams struct {
	fx.In

	Lc          fx.Lifecycle
	Cfg         *config.Config
	Logger      *slog.Logger
	PushHandler *handler.PushHandler
}

// NewServer exposes the push endpoint a Pub/Sub push subscription (or the local publisher) posts to.
func NewServer(params ServerParams) delivery.Delivery {
	srv := delivery.NewHTTPServer("notifier", params.Lc, params.Cfg, params.Logger)

	srv.Echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	srv.Echo.POST("/push", params.PushHandler.HandlePush)

	return srv
}
