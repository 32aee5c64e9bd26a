package impl

import (
	"context"
	"log/slog"
	"time"

	"darshan/internal/convergence"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/usecase"
	"darshan/internal/util"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// trackingService implements the TrackingUsecase interface.
type trackingService struct {
	bookingRepo  repository.BookingRepository
	locationRepo repository.LocationSampleRepository
	sync         *convergence.Synchronizer
	now          func() time.Time
	logger       *slog.Logger
}

// TrackingServiceParams holds dependencies for TrackingService, injected by Fx.
type TrackingServiceParams struct {
	fx.In

	BookingRepo  repository.BookingRepository
	LocationRepo repository.LocationSampleRepository
	Sync         *convergence.Synchronizer
	Logger       *slog.Logger
}

// NewTrackingService is the constructor for trackingService.
func NewTrackingService(params TrackingServiceParams) usecase.TrackingUsecase {
	return &trackingService{
		bookingRepo:  params.BookingRepo,
		locationRepo: params.LocationRepo,
		sync:         params.Sync,
		now:          time.Now,
		logger:       params.Logger,
	}
}

func (srv *trackingService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ReportPosition replaces the latest sample of an active journey.
func (srv *trackingService) ReportPosition(ctx context.Context, bookingID uuid.UUID, input *usecase.ReportPositionInput) (bool, error) {
	if !util.ValidCoordinate(input.Latitude, input.Longitude) {
		return false, domainerrors.ErrValidationFailed.WrapMessage("coordinates out of range")
	}
	if input.Speed != nil && *input.Speed < 0 {
		return false, domainerrors.ErrValidationFailed.WrapMessage("speed must not be negative")
	}

	active, err := srv.journeyActive(ctx, bookingID)
	if err != nil || !active {
		return false, err
	}

	sample := &entity.LocationSample{
		BookingID:        bookingID,
		Latitude:         input.Latitude,
		Longitude:        input.Longitude,
		Speed:            input.Speed,
		EstimatedArrival: input.EstimatedArrival,
		CapturedAt:       srv.now().UTC(),
	}

	previous, err := srv.latestSample(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if previous != nil {
		if sample.EstimatedArrival == nil {
			sample.EstimatedArrival = previous.EstimatedArrival
		}
		if sample.Speed == nil {
			if speed, ok := util.DeriveSpeed(previous.Point(), previous.CapturedAt, sample.Point(), sample.CapturedAt); ok {
				sample.Speed = &speed
			}
		}
	}

	if err := srv.locationRepo.SaveLatestSample(ctx, sample); err != nil {
		return false, errors.Wrap(err, "failed to save location sample")
	}

	srv.log(ctx).Debug("Location sample stored", slog.String("booking_id", bookingID.String()))
	srv.publish(ctx, bookingID)

	return true, nil
}

// SetEstimatedArrival updates the ETA on the latest sample.
func (srv *trackingService) SetEstimatedArrival(ctx context.Context, bookingID uuid.UUID, at time.Time) (bool, error) {
	active, err := srv.journeyActive(ctx, bookingID)
	if err != nil || !active {
		return false, err
	}

	sample, err := srv.latestSample(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if sample == nil {
		return false, domainerrors.ErrValidationFailed.WrapMessage("no position reported yet")
	}

	at = at.UTC()
	sample.EstimatedArrival = &at
	if err := srv.locationRepo.SaveLatestSample(ctx, sample); err != nil {
		return false, errors.Wrap(err, "failed to save estimated arrival")
	}

	srv.publish(ctx, bookingID)

	return true, nil
}

// CurrentStatus builds the requester-facing view of the provider's journey.
func (srv *trackingService) CurrentStatus(ctx context.Context, bookingID uuid.UUID) (*entity.TrackingStatus, error) {
	booking, err := srv.bookingRepo.FindBookingByIDForWrite(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, domainerrors.ErrBookingNotFound
		}

		return nil, errors.Wrap(err, "failed to find booking")
	}

	status := &entity.TrackingStatus{
		BookingID: bookingID,
		Phase:     trackingPhase(booking),
	}

	if booking.IsJourneyActive() {
		status.LastSample, err = srv.latestSample(ctx, bookingID)
		if err != nil {
			return nil, err
		}
	}

	var eta *time.Time
	if status.LastSample != nil {
		eta = status.LastSample.EstimatedArrival
	}
	status.ETA = util.FormatETA(eta, srv.now())

	return status, nil
}

func trackingPhase(booking *entity.Booking) entity.TrackingPhase {
	switch {
	case booking.Status == entity.BookingStatusCompleted:
		return entity.TrackingPhaseArrived
	case booking.IsJourneyActive():
		return entity.TrackingPhaseEnRoute
	default:
		return entity.TrackingPhasePreparing
	}
}

func (srv *trackingService) journeyActive(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	booking, err := srv.bookingRepo.FindBookingByIDForWrite(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return false, domainerrors.ErrBookingNotFound
		}

		return false, errors.Wrap(err, "failed to find booking")
	}

	return booking.IsJourneyActive(), nil
}

func (srv *trackingService) latestSample(ctx context.Context, bookingID uuid.UUID) (*entity.LocationSample, error) {
	sample, err := srv.locationRepo.FindLatestSample(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrLocationSampleNotFound) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to read location sample")
	}

	return sample, nil
}

// publish wakes live tracking streams. Samples are superseded quickly, so no ladder runs.
func (srv *trackingService) publish(ctx context.Context, bookingID uuid.UUID) {
	srv.sync.Converge(ctx, convergence.Mutation{
		Entity: "location",
		ID:     bookingID.String(),
		Views:  []convergence.View{{Key: usecase.TrackingViewKey(bookingID)}},
		Once:   true,
	})
}
