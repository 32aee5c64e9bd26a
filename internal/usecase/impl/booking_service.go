package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"darshan/config"
	"darshan/internal/convergence"
	deliverycontext "darshan/internal/delivery/context"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/domain/service"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// bookingService implements the BookingUsecase interface.
type bookingService struct {
	txManager         repository.TransactionManager
	bookingRepo       repository.BookingRepository
	profileRepo       repository.ProviderProfileRepository
	locationRepo      repository.LocationSampleRepository
	views             usecase.ViewUsecase
	sync              *convergence.Synchronizer
	notifier          *notifier
	scheduleTolerance time.Duration
	now               func() time.Time
	logger            *slog.Logger
}

// BookingServiceParams holds dependencies for BookingService, injected by Fx.
type BookingServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	BookingRepo  repository.BookingRepository
	ProfileRepo  repository.ProviderProfileRepository
	LocationRepo repository.LocationSampleRepository
	Views        usecase.ViewUsecase
	Sync         *convergence.Synchronizer
	Publisher    service.EventPublisher
	Config       *config.Config
	Logger       *slog.Logger
}

// NewBookingService is the constructor for bookingService.
func NewBookingService(params BookingServiceParams) usecase.BookingUsecase {
	var tolerance time.Duration
	if params.Config != nil && params.Config.Booking != nil {
		tolerance = params.Config.Booking.ScheduleTolerance
	}

	return &bookingService{
		txManager:         params.TxManager,
		bookingRepo:       params.BookingRepo,
		profileRepo:       params.ProfileRepo,
		locationRepo:      params.LocationRepo,
		views:             params.Views,
		sync:              params.Sync,
		notifier:          newNotifier(params.Publisher, params.Logger),
		scheduleTolerance: tolerance,
		now:               time.Now,
		logger:            params.Logger,
	}
}

func (srv *bookingService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Create validates the request and stores the booking, pending or already confirmed when paid.
func (srv *bookingService) Create(ctx context.Context, input *usecase.CreateBookingInput) (*entity.Booking, error) {
	purpose := strings.TrimSpace(input.Purpose)
	address := strings.TrimSpace(input.Address)

	switch {
	case purpose == "":
		return nil, domainerrors.ErrValidationFailed.WrapMessage("purpose is required")
	case address == "":
		return nil, domainerrors.ErrValidationFailed.WrapMessage("address is required")
	case input.ScheduledAt.Before(srv.now().Add(-srv.scheduleTolerance)):
		return nil, domainerrors.ErrValidationFailed.WrapMessage("scheduled time is in the past")
	case input.Price != nil && *input.Price < 0:
		return nil, domainerrors.ErrValidationFailed.WrapMessage("price must not be negative")
	}

	booking := &entity.Booking{
		RequesterID: input.RequesterID,
		ProviderID:  input.ProviderID,
		ScheduledAt: input.ScheduledAt,
		Purpose:     purpose,
		Address:     address,
		Notes:       strings.TrimSpace(input.Notes),
		Status:      entity.BookingStatusPending,
	}

	var providerUserID uuid.UUID
	err := srv.txManager.Execute(ctx, func(factory repository.RepositoryFactory) error {
		profile, err := factory.NewProviderProfileRepository().FindProviderProfileByID(ctx, input.ProviderID)
		if err != nil {
			if errors.Is(err, repository.ErrProviderProfileNotFound) {
				return domainerrors.ErrProviderNotFound
			}

			return errors.Wrap(err, "failed to find provider profile")
		}

		owner, err := factory.NewAccountRepository().FindAccountByIDForWrite(ctx, profile.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to find provider account")
		}
		if !owner.IsProvider || profile.ApprovalStatus != entity.ApprovalStatusApproved {
			return domainerrors.ErrValidationFailed.WrapMessage("provider is not accepting bookings")
		}
		if owner.ID == input.RequesterID {
			return domainerrors.ErrValidationFailed.WrapMessage("providers cannot book themselves")
		}
		providerUserID = owner.ID

		booking.Price = profile.Price
		if input.Price != nil {
			booking.Price = *input.Price
		}

		if input.Payment != nil {
			if err := checkPayment(booking, input.Payment); err != nil {
				return err
			}
			booking.Status = entity.BookingStatusConfirmed
			booking.PaymentRef = &input.Payment.Reference
		}

		return factory.NewBookingRepository().CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("status", booking.Status.String()),
	)

	srv.converge(ctx, booking)
	srv.notifier.notify(ctx, service.EventBookingCreated, bookingEventData(booking), providerUserID)
	if booking.Status == entity.BookingStatusConfirmed {
		srv.notifier.notify(ctx, service.EventBookingConfirmed, bookingEventData(booking), booking.RequesterID)
	}

	return booking, nil
}

func (srv *bookingService) Transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, expectedVersion *int64) (*entity.Booking, error) {
	return srv.transition(ctx, bookingID, target, expectedVersion, nil)
}

func (srv *bookingService) Confirm(ctx context.Context, bookingID uuid.UUID, payment *service.PaymentOutcome, expectedVersion *int64) (*entity.Booking, error) {
	return srv.transition(ctx, bookingID, entity.BookingStatusConfirmed, expectedVersion, payment)
}

func (srv *bookingService) Cancel(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error) {
	return srv.transition(ctx, bookingID, entity.BookingStatusCancelled, expectedVersion, nil)
}

func (srv *bookingService) Complete(ctx context.Context, bookingID uuid.UUID, expectedVersion *int64) (*entity.Booking, error) {
	return srv.transition(ctx, bookingID, entity.BookingStatusCompleted, expectedVersion, nil)
}

// transition runs status write, side-effect write and synchronizer dispatch in that order.
func (srv *bookingService) transition(ctx context.Context, bookingID uuid.UUID, target entity.BookingStatus, expectedVersion *int64, payment *service.PaymentOutcome) (*entity.Booking, error) {
	if !target.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("unknown booking status %q", target))
	}

	current, err := srv.findForWrite(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// A stale version loses to the writer that moved the booking on, whatever status it reached.
	if expectedVersion != nil && *expectedVersion != current.Version {
		return nil, domainerrors.ErrConflict.WrapMessage("booking was modified since it was read")
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, domainerrors.ErrInvalidTransition.WrapMessage(
			fmt.Sprintf("booking cannot move from %s to %s", current.Status, target))
	}

	update := repository.BookingUpdate{
		ID:              current.ID,
		ExpectedStatus:  current.Status,
		ExpectedVersion: current.Version,
		Status:          target,
	}
	if target == entity.BookingStatusConfirmed {
		switch {
		case payment != nil:
			if err := checkPayment(current, payment); err != nil {
				return nil, err
			}
			update.PaymentRef = &payment.Reference
		case current.RequiresPayment():
			return nil, domainerrors.ErrPaymentRequired
		}
	}

	updated, err := srv.bookingRepo.UpdateBookingConditionally(ctx, update)
	if err != nil {
		return nil, mapBookingWriteError(err)
	}

	srv.log(ctx).Info("Booking transitioned",
		slog.String("booking_id", updated.ID.String()),
		slog.String("from", current.Status.String()),
		slog.String("to", updated.Status.String()),
		slog.Int64("version", updated.Version),
	)

	if target == entity.BookingStatusCancelled && current.JourneyStarted {
		if err := srv.locationRepo.DeleteSample(ctx, updated.ID); err != nil {
			srv.log(ctx).Warn("Failed to drop location sample of cancelled booking",
				slog.String("booking_id", updated.ID.String()),
				slog.Any("error", err),
			)
		}
	}

	srv.converge(ctx, updated, convergence.View{Key: usecase.TrackingViewKey(updated.ID)})
	srv.notifyTransition(ctx, updated)

	return updated, nil
}

// StartJourney marks the booking en route; repeating it is a no-op.
func (srv *bookingService) StartJourney(ctx context.Context, bookingID, actorUserID uuid.UUID) (*entity.Booking, error) {
	current, err := srv.findForWrite(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	profile, err := srv.profileRepo.FindProviderProfileByID(ctx, current.ProviderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find provider profile")
	}
	if profile.UserID != actorUserID {
		return nil, domainerrors.ErrForbidden.WrapMessage("only the booked provider can start the journey")
	}

	if current.Status != entity.BookingStatusConfirmed {
		return nil, domainerrors.ErrInvalidTransition.WrapMessage(
			fmt.Sprintf("journey cannot start while booking is %s", current.Status))
	}
	if current.JourneyStarted {
		return current, nil
	}

	updated, err := srv.bookingRepo.UpdateBookingConditionally(ctx, repository.BookingUpdate{
		ID:              current.ID,
		ExpectedStatus:  current.Status,
		ExpectedVersion: current.Version,
		Status:          current.Status,
		JourneyStarted:  true,
	})
	if err != nil {
		return nil, mapBookingWriteError(err)
	}

	srv.log(ctx).Info("Journey started", slog.String("booking_id", updated.ID.String()))

	srv.converge(ctx, updated, convergence.View{Key: usecase.TrackingViewKey(updated.ID)})
	srv.notifier.notify(ctx, service.EventJourneyStarted, bookingEventData(updated), updated.RequesterID)

	return updated, nil
}

func (srv *bookingService) Get(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	return srv.views.Booking(ctx, bookingID)
}

func (srv *bookingService) ListForRequester(ctx context.Context, requesterID uuid.UUID) ([]*entity.Booking, error) {
	return srv.views.RequesterBookings(ctx, requesterID)
}

func (srv *bookingService) ListForProvider(ctx context.Context, providerUserID uuid.UUID) ([]*entity.Booking, error) {
	profile, err := srv.profileRepo.FindProviderProfileByUserID(ctx, providerUserID)
	if err != nil {
		if errors.Is(err, repository.ErrProviderProfileNotFound) {
			return nil, domainerrors.ErrProviderNotFound
		}

		return nil, errors.Wrap(err, "failed to find provider profile")
	}

	return srv.views.ProviderBookings(ctx, profile.ID)
}

func (srv *bookingService) Party(ctx context.Context, booking *entity.Booking, userID uuid.UUID, isAdmin bool) (usecase.BookingParty, error) {
	if booking.RequesterID == userID {
		return usecase.PartyRequester, nil
	}

	profile, err := srv.profileRepo.FindProviderProfileByID(ctx, booking.ProviderID)
	switch {
	case err == nil && profile.UserID == userID:
		return usecase.PartyProvider, nil
	case err != nil && !errors.Is(err, repository.ErrProviderProfileNotFound):
		return usecase.PartyNone, errors.Wrap(err, "failed to find provider profile")
	}

	if isAdmin {
		return usecase.PartyAdmin, nil
	}

	return usecase.PartyNone, nil
}

func (srv *bookingService) findForWrite(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := srv.bookingRepo.FindBookingByIDForWrite(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, domainerrors.ErrBookingNotFound
		}

		return nil, errors.Wrap(err, "failed to find booking")
	}

	return booking, nil
}

// converge dispatches the synchronizer for the booking's detail, requester list and provider dashboard.
func (srv *bookingService) converge(ctx context.Context, booking *entity.Booking, extra ...convergence.View) {
	id, requesterID, providerID := booking.ID, booking.RequesterID, booking.ProviderID

	views := append([]convergence.View{
		{Key: bookingViewKey(id), Refetch: func(ctx context.Context) error { return srv.views.RefreshBooking(ctx, id) }},
		{Key: requesterViewKey(requesterID), Refetch: func(ctx context.Context) error { return srv.views.RefreshRequesterBookings(ctx, requesterID) }},
		{Key: providerViewKey(providerID), Refetch: func(ctx context.Context) error { return srv.views.RefreshProviderBookings(ctx, providerID) }},
	}, extra...)

	srv.sync.Converge(ctx, convergence.Mutation{
		Entity:   "booking",
		ID:       id.String(),
		Views:    views,
		Expected: bookingState(booking),
		Verify: func(ctx context.Context) (string, error) {
			observed, err := srv.bookingRepo.FindBookingByID(ctx, id)
			if err != nil {
				return "", err
			}

			return bookingState(observed), nil
		},
	})
}

func (srv *bookingService) notifyTransition(ctx context.Context, booking *entity.Booking) {
	var eventType string
	switch booking.Status {
	case entity.BookingStatusConfirmed:
		eventType = service.EventBookingConfirmed
	case entity.BookingStatusCancelled:
		eventType = service.EventBookingCancelled
	case entity.BookingStatusCompleted:
		eventType = service.EventBookingCompleted
	default:
		return
	}

	recipients := []uuid.UUID{booking.RequesterID}
	if profile, err := srv.profileRepo.FindProviderProfileByID(ctx, booking.ProviderID); err == nil {
		recipients = append(recipients, profile.UserID)
	}

	srv.notifier.notify(ctx, eventType, bookingEventData(booking), recipients...)
}

// bookingState is what verification compares: status plus version.
func bookingState(b *entity.Booking) string {
	return b.Status.String() + "@" + strconv.FormatInt(b.Version, 10)
}

func bookingEventData(b *entity.Booking) map[string]string {
	return map[string]string{
		"booking_id":   b.ID.String(),
		"status":       b.Status.String(),
		"scheduled_at": b.ScheduledAt.UTC().Format(time.RFC3339),
		"purpose":      b.Purpose,
	}
}

func checkPayment(booking *entity.Booking, payment *service.PaymentOutcome) error {
	if strings.TrimSpace(payment.Reference) == "" {
		return domainerrors.ErrPaymentRequired.WrapMessage("payment reference is empty")
	}
	if payment.Amount+0.005 < booking.Price {
		return domainerrors.ErrPaymentRequired.WrapMessage("payment does not cover the booking price")
	}

	return nil
}

func mapBookingWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrBookingVersionMismatch):
		return domainerrors.ErrConflict.WrapMessage("booking was modified concurrently")
	case errors.Is(err, repository.ErrBookingNotFound):
		return domainerrors.ErrBookingNotFound
	default:
		return errors.Wrap(err, "failed to update booking")
	}
}
