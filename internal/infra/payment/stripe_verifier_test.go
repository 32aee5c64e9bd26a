package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	domainerrors "darshan/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestVerifier(intent *stripe.PaymentIntent, err error) *stripeVerifier {
	return &stripeVerifier{
		getIntent: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return intent, err
		},
		currency: "inr",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestStripeVerifier_Succeeded(t *testing.T) {
	v := newTestVerifier(&stripe.PaymentIntent{
		ID:       "pi_123",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   150050,
		Currency: "inr",
	}, nil)

	outcome, err := v.Verify(context.Background(), "pi_123", 1500.50)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", outcome.Reference)
	assert.InDelta(t, 1500.50, outcome.Amount, 0.001)
}

func TestStripeVerifier_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		intent *stripe.PaymentIntent
		amount float64
	}{
		{
			name:   "not succeeded",
			intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusProcessing, Amount: 1000, Currency: "inr"},
			amount: 10,
		},
		{
			name:   "amount too low",
			intent: &stripe.PaymentIntent{ID: "pi_2", Status: stripe.PaymentIntentStatusSucceeded, Amount: 999, Currency: "inr"},
			amount: 10,
		},
		{
			name:   "currency mismatch",
			intent: &stripe.PaymentIntent{ID: "pi_3", Status: stripe.PaymentIntentStatusSucceeded, Amount: 1000, Currency: "usd"},
			amount: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestVerifier(tt.intent, nil).Verify(context.Background(), tt.intent.ID, tt.amount)
			assert.ErrorIs(t, err, domainerrors.ErrPaymentRequired)
		})
	}
}

func TestStripeVerifier_EmptyReference(t *testing.T) {
	_, err := newTestVerifier(nil, nil).Verify(context.Background(), "", 10)
	assert.ErrorIs(t, err, domainerrors.ErrPaymentRequired)
}

func TestStripeVerifier_UnknownReference(t *testing.T) {
	_, err := newTestVerifier(nil, &stripe.Error{HTTPStatusCode: 404}).Verify(context.Background(), "pi_missing", 10)
	assert.ErrorIs(t, err, domainerrors.ErrPaymentRequired)
}
