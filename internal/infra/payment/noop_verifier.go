package payment

import (
	"context"

	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/service"
)

// noopVerifier accepts any non-empty reference. Used in development.
type noopVerifier struct{}

func (noopVerifier) Verify(_ context.Context, reference string, amount float64) (*service.PaymentOutcome, error) {
	if reference == "" {
		return nil, domainerrors.ErrPaymentRequired.WrapMessage("payment reference is empty")
	}

	return &service.PaymentOutcome{Reference: reference, Amount: amount}, nil
}
