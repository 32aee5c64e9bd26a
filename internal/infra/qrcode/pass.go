// Package qrcode renders booking passes the provider scans on arrival.
package qrcode

import (
	"encoding/json"

	"darshan/config"
	"darshan/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const (
	passType    = "booking_pass"
	defaultSize = 256
)

//nolint:gochecknoglobals
var recoveryLevels = map[string]qrcode.RecoveryLevel{
	"L": qrcode.Low,
	"M": qrcode.Medium,
	"Q": qrcode.High,
	"H": qrcode.Highest,
}

// PassData is the payload encoded in a booking pass. Version pins the pass to the
// booking version it was issued for.
type PassData struct {
	BookingID string `json:"booking_id"`
	Version   int64  `json:"version"`
	Type      string `json:"type"`
}

type passRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewQRCodeServiceFromConfig builds the renderer from the qrCode config section.
func NewQRCodeServiceFromConfig(cfg *config.Config) service.QRCodeService {
	if cfg.QRCode == nil {
		return NewQRCodeService(defaultSize, "M")
	}

	return NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel)
}

// NewQRCodeService renders size px passes; unknown levels fall back to "M".
func NewQRCodeService(size int, level string) service.QRCodeService {
	r := &passRenderer{size: size, level: qrcode.Medium}
	if l, ok := recoveryLevels[level]; ok {
		r.level = l
	}
	if r.size <= 0 {
		r.size = defaultSize
	}

	return r
}

func (r *passRenderer) GenerateBookingPass(bookingID uuid.UUID, version int64) ([]byte, error) {
	payload, err := json.Marshal(PassData{BookingID: bookingID.String(), Version: version, Type: passType})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	png, err := qrcode.Encode(string(payload), r.level, r.size)
	if err != nil {
		return nil, errors.Wrapf(err, "render pass for booking %s", bookingID)
	}

	return png, nil
}

func (r *passRenderer) ParseBookingPass(scanned string) (uuid.UUID, error) {
	var data PassData
	if err := json.Unmarshal([]byte(scanned), &data); err != nil {
		return uuid.Nil, errors.Wrap(err, "pass is not valid JSON")
	}
	if data.Type != passType {
		return uuid.Nil, errors.Errorf("not a booking pass: %q", data.Type)
	}

	id, err := uuid.Parse(data.BookingID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "pass booking id")
	}

	return id, nil
}
