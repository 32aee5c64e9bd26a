package handler

import (
	"context"
	"log/slog"
	"net/http"

	"darshan/config"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/service"
	"darshan/internal/infra/pubsub"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// PushHandler receives push subscription deliveries. The status code is the ack:
// 2xx acknowledges, 503 asks for redelivery.
type PushHandler struct {
	auth       pushAuthenticator
	logger     *slog.Logger
	dispatcher *Dispatcher
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config     *config.Config
	Logger     *slog.Logger
	Dispatcher *Dispatcher
}

func NewPushHandler(params PushHandlerParams) *PushHandler {
	h := &PushHandler{
		auth:       allowAll,
		logger:     params.Logger.With(slog.String("component", "push")),
		dispatcher: params.Dispatcher,
	}

	// only real Pub/Sub signs its pushes
	cfg := params.Config
	if cfg.PubSub != nil && cfg.PubSub.Provider == constants.PubSubProviderGoogle && cfg.Env.Env != constants.EnvDevelop {
		h.auth = verifyGoogleOIDC
	}

	return h
}

// HandlePush dispatches one pushed notification event.
func (h *PushHandler) HandlePush(c echo.Context) error {
	req := c.Request()

	if err := h.auth(req); err != nil {
		h.logger.Warn("Push rejected", slog.Any("error", err))

		return c.NoContent(http.StatusUnauthorized)
	}

	var env pubsub.PushEnvelope
	if err := c.Bind(&env); err != nil {
		h.logger.Warn("Push body is not an envelope", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	event, err := env.Event()
	if err != nil {
		h.logger.Warn("Push message undecodable",
			slog.String("message_id", env.Message.MessageID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusBadRequest)
	}

	requestID := extractRequestID(req.Context(), env.Message.Attributes, event)
	logger := h.logger.With(slog.String("request_id", requestID))
	ctx := deliverycontext.WithLogger(deliverycontext.WithRequestID(req.Context(), requestID), logger)

	err = h.dispatcher.Dispatch(ctx, event)
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case IsRetryable(err):
		logger.Warn("Notification delivery failed, asking for redelivery",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusServiceUnavailable)
	default:
		// redelivering cannot fix it, so acknowledge
		logger.Error("Notification dropped",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusOK)
	}
}

// extractRequestID prefers the message attribute, then the event field, then the push
// request's own ID.
func extractRequestID(ctx context.Context, attributes map[string]string, event *service.NotificationEvent) string {
	for _, id := range []string{
		attributes[pubsub.AttrRequestID],
		event.RequestID,
		deliverycontext.GetRequestIDFromContext(ctx),
	} {
		if id != "" {
			return id
		}
	}

	return uuid.NewString()
}
