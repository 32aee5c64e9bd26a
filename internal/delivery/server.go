package delivery

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"darshan/config"
	"darshan/internal/delivery/middleware"
	"darshan/internal/domain/lifecycle"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/net/http2"
)

// HTTPServer runs an echo instance on cfg.HTTP.Port and stops with the fx app.
type HTTPServer struct {
	Echo *echo.Echo

	name   string
	port   int
	h2c    *http2.Server
	logger *slog.Logger
}

// NewHTTPServer builds an echo instance with panic recovery, request IDs and access logging
// already installed, and registers its shutdown on lc.
func NewHTTPServer(name string, lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	t := cfg.HTTP.Timeouts
	e.Server.ReadTimeout = t.ReadTimeout
	e.Server.ReadHeaderTimeout = t.ReadHeaderTimeout
	e.Server.WriteTimeout = t.WriteTimeout
	e.Server.IdleTimeout = t.IdleTimeout

	// request IDs first so every access log line carries one
	e.Use(
		echomiddleware.Recover(),
		middleware.NewRequestIDMiddleware(logger).Process,
		middleware.NewLoggerMiddleware(logger, cfg).Handle,
	)

	s := &HTTPServer{
		Echo:   e,
		name:   name,
		port:   cfg.HTTP.Port,
		logger: logger.With(slog.String("server", name)),
	}

	lc.Append(fx.Hook{OnStop: s.shutdown})

	return s
}

// EnableH2C serves cleartext HTTP/2 alongside HTTP/1.1.
func (s *HTTPServer) EnableH2C() {
	s.h2c = &http2.Server{IdleTimeout: s.Echo.Server.IdleTimeout}
}

// Serve blocks until the server is shut down.
func (s *HTTPServer) Serve(context.Context) error {
	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.port))
	s.logger.Info("HTTP server listening", slog.String("addr", addr), slog.Bool("h2c", s.h2c != nil))

	var err error
	if s.h2c != nil {
		err = s.Echo.StartH2CServer(addr, s.h2c)
	} else {
		err = s.Echo.Start(addr)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return errors.Wrapf(err, "%s server", s.name)
}

func (s *HTTPServer) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()

	s.logger.Info("HTTP server draining")

	return errors.WithStack(s.Echo.Shutdown(ctx))
}
