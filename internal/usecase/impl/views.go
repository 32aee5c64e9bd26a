// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"darshan/config"
	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/domain/service"
	"darshan/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const viewPageSize = 100

// View cache keys. Every mutation lists the keys it affects.
func bookingViewKey(id uuid.UUID) string { return "booking:" + id.String() }

func requesterViewKey(id uuid.UUID) string { return "requester:" + id.String() + ":bookings" }

func providerViewKey(id uuid.UUID) string { return "provider:" + id.String() + ":bookings" }

func accountViewKey(id uuid.UUID) string { return "account:" + id.String() }

func applicationsViewKey(status entity.ApprovalStatus) string {
	return "admin:applications:" + string(status)
}

// viewService is a cache-aside layer over the read replicas.
type viewService struct {
	bookingRepo repository.BookingRepository
	accountRepo repository.AccountRepository
	cache       service.ViewCache
	ttl         time.Duration
	logger      *slog.Logger
}

// ViewServiceParams holds dependencies for the view service, injected by Fx.
type ViewServiceParams struct {
	fx.In

	BookingRepo repository.BookingRepository
	AccountRepo repository.AccountRepository
	Cache       service.ViewCache
	Config      *config.Config
	Logger      *slog.Logger
}

// NewViewService creates the view service.
func NewViewService(params ViewServiceParams) usecase.ViewUsecase {
	ttl := 30 * time.Second
	if params.Config != nil && params.Config.Cache != nil && params.Config.Cache.TTL > 0 {
		ttl = params.Config.Cache.TTL
	}

	return &viewService{
		bookingRepo: params.BookingRepo,
		accountRepo: params.AccountRepo,
		cache:       params.Cache,
		ttl:         ttl,
		logger:      params.Logger,
	}
}

// cached returns the cached value of key, loading and storing it on a miss.
// Cache failures degrade to a direct read.
func cached[T any](ctx context.Context, s *viewService, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("View cache read failed", slog.String("view", key), slog.Any("error", err))
	} else if ok {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return zero, err
	}

	s.store(ctx, key, value)

	return value, nil
}

func (s *viewService) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("View encode failed", slog.String("view", key), slog.Any("error", err))

		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("View cache write failed", slog.String("view", key), slog.Any("error", err))
	}
}

// refresh reloads a view and overwrites its cache entry.
func refresh[T any](ctx context.Context, s *viewService, key string, load func(context.Context) (T, error)) error {
	value, err := load(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode view %s", key)
	}

	return s.cache.Set(ctx, key, raw, s.ttl)
}

func (s *viewService) loadBooking(id uuid.UUID) func(context.Context) (*entity.Booking, error) {
	return func(ctx context.Context) (*entity.Booking, error) {
		booking, err := s.bookingRepo.FindBookingByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrBookingNotFound) {
				return nil, domainerrors.ErrBookingNotFound
			}

			return nil, errors.Wrap(err, "failed to load booking view")
		}

		return booking, nil
	}
}

func (s *viewService) loadRequesterBookings(id uuid.UUID) func(context.Context) ([]*entity.Booking, error) {
	return func(ctx context.Context) ([]*entity.Booking, error) {
		bookings, err := s.bookingRepo.FindBookingsByRequester(ctx, id, viewPageSize, 0)

		return bookings, errors.Wrap(err, "failed to load requester bookings")
	}
}

func (s *viewService) loadProviderBookings(id uuid.UUID) func(context.Context) ([]*entity.Booking, error) {
	return func(ctx context.Context) ([]*entity.Booking, error) {
		bookings, err := s.bookingRepo.FindBookingsByProvider(ctx, id, nil, viewPageSize, 0)

		return bookings, errors.Wrap(err, "failed to load provider dashboard")
	}
}

func (s *viewService) loadAccount(id uuid.UUID) func(context.Context) (*entity.Account, error) {
	return func(ctx context.Context) (*entity.Account, error) {
		account, err := s.accountRepo.FindAccountByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, domainerrors.ErrAccountNotFound
			}

			return nil, errors.Wrap(err, "failed to load account view")
		}

		return account, nil
	}
}

func (s *viewService) loadApplications(status entity.ApprovalStatus) func(context.Context) ([]*entity.Account, error) {
	return func(ctx context.Context) ([]*entity.Account, error) {
		accounts, err := s.accountRepo.FindAccountsByApplicationStatus(ctx, status, viewPageSize, 0)

		return accounts, errors.Wrap(err, "failed to load applications")
	}
}

func (s *viewService) Booking(ctx context.Context, bookingID uuid.UUID) (*entity.Booking, error) {
	return cached(ctx, s, bookingViewKey(bookingID), s.loadBooking(bookingID))
}

func (s *viewService) RequesterBookings(ctx context.Context, requesterID uuid.UUID) ([]*entity.Booking, error) {
	return cached(ctx, s, requesterViewKey(requesterID), s.loadRequesterBookings(requesterID))
}

func (s *viewService) ProviderBookings(ctx context.Context, providerID uuid.UUID) ([]*entity.Booking, error) {
	return cached(ctx, s, providerViewKey(providerID), s.loadProviderBookings(providerID))
}

func (s *viewService) Account(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	return cached(ctx, s, accountViewKey(userID), s.loadAccount(userID))
}

func (s *viewService) Applications(ctx context.Context, status entity.ApprovalStatus) ([]*entity.Account, error) {
	if !status.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WrapMessage(fmt.Sprintf("unknown application status %q", status))
	}

	return cached(ctx, s, applicationsViewKey(status), s.loadApplications(status))
}

func (s *viewService) RefreshBooking(ctx context.Context, bookingID uuid.UUID) error {
	return refresh(ctx, s, bookingViewKey(bookingID), s.loadBooking(bookingID))
}

func (s *viewService) RefreshRequesterBookings(ctx context.Context, requesterID uuid.UUID) error {
	return refresh(ctx, s, requesterViewKey(requesterID), s.loadRequesterBookings(requesterID))
}

func (s *viewService) RefreshProviderBookings(ctx context.Context, providerID uuid.UUID) error {
	return refresh(ctx, s, providerViewKey(providerID), s.loadProviderBookings(providerID))
}

func (s *viewService) RefreshAccount(ctx context.Context, userID uuid.UUID) error {
	return refresh(ctx, s, accountViewKey(userID), s.loadAccount(userID))
}

func (s *viewService) RefreshApplications(ctx context.Context, status entity.ApprovalStatus) error {
	return refresh(ctx, s, applicationsViewKey(status), s.loadApplications(status))
}
