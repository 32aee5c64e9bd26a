package service

import (
	"github.com/google/uuid"
)

// QRCodeService defines the interface for booking pass generation and parsing
type QRCodeService interface {
	// GenerateBookingPass renders a PNG QR code identifying a confirmed booking
	GenerateBookingPass(bookingID uuid.UUID, version int64) ([]byte, error)

	// ParseBookingPass parses QR code data and returns the booking ID
	ParseBookingPass(qrData string) (uuid.UUID, error)
}
