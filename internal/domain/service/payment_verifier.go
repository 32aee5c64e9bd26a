package service

import (
	"context"
)

// PaymentOutcome is what the booking lifecycle is told about an external payment.
type PaymentOutcome struct {
	Reference string
	Amount    float64
}

// PaymentVerifier confirms with the payment collaborator that a client-reported payment succeeded.
type PaymentVerifier interface {
	// Verify returns the outcome for reference, or an error if the payment did not succeed for amount.
	Verify(ctx context.Context, reference string, amount float64) (*PaymentOutcome, error)
}
