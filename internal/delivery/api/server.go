package api

import (
	"log/slog"

	"darshan/config"
	"darshan/internal/delivery"
	apimiddleware "darshan/internal/delivery/api/middleware"
	"darshan/internal/delivery/api/router"
	"darshan/internal/delivery/api/validator"

	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

// ServerParams holds dependencies for HTTP server, injected by Fx.
type ServerParams struct {
	fx.In

	Lc           fx.Lifecycle
	Cfg          *config.Config
	Logger       *slog.Logger
	RouterParams router.RouterParams
}

// NewServer builds the public booking API.
func NewServer(params ServerParams) delivery.Delivery {
	srv := delivery.NewHTTPServer("api", params.Lc, params.Cfg, params.Logger)
	srv.EnableH2C()

	e := srv.Echo
	e.Use(
		echomiddleware.CORS(),
		echomiddleware.BodyLimit(params.Cfg.HTTP.MaxRequestBodySize),
	)
	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(params.Logger).HandleHTTPError
	e.Validator = validator.New()

	router.NewRouter(params.RouterParams).RegisterRoutes(e)

	return srv
}
