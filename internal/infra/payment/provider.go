package payment

import (
	"log/slog"

	"darshan/config"
	"darshan/internal/domain/constants"
	"darshan/internal/domain/service"
	"darshan/internal/errors"

	"go.uber.org/fx"
)

// Params holds dependencies for the payment verifier, injected by Fx
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// NewPaymentVerifier creates the verifier selected by payment.provider.
func NewPaymentVerifier(params Params) (service.PaymentVerifier, error) {
	cfg := params.Config.Payment
	if cfg == nil || cfg.Provider == "" || cfg.Provider == constants.PaymentProviderNoop {
		params.Logger.Warn("Payment verification disabled, any reference is accepted")

		return noopVerifier{}, nil
	}

	switch cfg.Provider {
	case constants.PaymentProviderStripe:
		if cfg.SecretKey == "" {
			return nil, errors.New("payment.secretKey is required for stripe provider")
		}

		return NewStripeVerifier(cfg.SecretKey, cfg.Currency, params.Logger), nil
	default:
		return nil, errors.Errorf("unknown payment provider: %s", cfg.Provider)
	}
}
