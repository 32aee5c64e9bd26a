// Package payment verifies client-reported payments with the payment processor.
package payment

import (
	"context"
	"log/slog"
	"math"
	"strings"

	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/service"
	"darshan/internal/errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type getPaymentIntentFunc func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// stripeVerifier checks that a PaymentIntent succeeded for the booking amount.
type stripeVerifier struct {
	getIntent getPaymentIntentFunc
	currency  string
	logger    *slog.Logger
}

// NewStripeVerifier creates a verifier using the given secret key.
func NewStripeVerifier(secretKey, currency string, logger *slog.Logger) service.PaymentVerifier {
	api := client.New(secretKey, nil)

	return &stripeVerifier{
		getIntent: api.PaymentIntents.Get,
		currency:  strings.ToLower(currency),
		logger:    logger,
	}
}

// Verify treats reference as a PaymentIntent ID. The amount is compared in minor units.
func (v *stripeVerifier) Verify(ctx context.Context, reference string, amount float64) (*service.PaymentOutcome, error) {
	if reference == "" {
		return nil, domainerrors.ErrPaymentRequired.WrapMessage("payment reference is empty")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := v.getIntent(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, domainerrors.ErrPaymentRequired.WrapMessage("unknown payment reference")
		}

		return nil, domainerrors.ErrTransientIO.WrapMessage("payment verification failed: " + err.Error())
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		v.logger.Info("Payment not settled",
			slog.String("reference", reference),
			slog.String("status", string(intent.Status)),
		)

		return nil, domainerrors.ErrPaymentRequired.WrapMessage("payment has not succeeded")
	}

	if v.currency != "" && string(intent.Currency) != v.currency {
		return nil, domainerrors.ErrPaymentRequired.WrapMessage("payment currency mismatch")
	}

	if intent.Amount < toMinorUnits(amount) {
		return nil, domainerrors.ErrPaymentRequired.WrapMessage("payment amount is lower than the booking price")
	}

	return &service.PaymentOutcome{
		Reference: intent.ID,
		Amount:    float64(intent.Amount) / 100,
	}, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
