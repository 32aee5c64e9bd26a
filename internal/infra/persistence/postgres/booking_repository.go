// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// bookingRepository implements the repository.BookingRepository interface.
type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository is the constructor for bookingRepository.
func NewBookingRepository(db *gorm.DB) repository.BookingRepository {
	return &bookingRepository{
		db: db,
	}
}

// CreateBooking persists a new booking with version 1.
func (repo *bookingRepository) CreateBooking(ctx context.Context, booking *entity.Booking) error {
	if booking.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate booking ID")
		}
		booking.ID = id
	}
	booking.Version = 1
	bookingM := fromBookingDomain(booking)

	if err := repo.db.WithContext(ctx).Create(bookingM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("unknown requester or provider")
		}
		if isCheckConstraintViolation(err) || isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("invalid booking fields")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create booking")
	}

	booking.CreatedAt = bookingM.CreatedAt
	booking.UpdatedAt = bookingM.UpdatedAt

	return nil
}

// FindBookingByID reads a booking; the resolver may route it to a lagging replica.
func (repo *bookingRepository) FindBookingByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return repo.findBooking(repo.db.WithContext(ctx), id)
}

// FindBookingByIDForWrite reads a booking from the primary.
func (repo *bookingRepository) FindBookingByIDForWrite(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return repo.findBooking(repo.db.WithContext(ctx).Clauses(dbresolver.Write), id)
}

func (repo *bookingRepository) findBooking(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	var bookingM model.BookingModel

	if err := db.Where("id = ?", id).First(&bookingM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBookingNotFound
		}

		return nil, errors.Wrap(err, "failed to find booking by ID")
	}

	return toBookingDomain(&bookingM), nil
}

// UpdateBookingConditionally writes the new state only while status and version still match.
func (repo *bookingRepository) UpdateBookingConditionally(ctx context.Context, update repository.BookingUpdate) (*entity.Booking, error) {
	values := map[string]any{
		"status":          string(update.Status),
		"journey_started": update.JourneyStarted,
		"version":         gorm.Expr("version + 1"),
		"updated_at":      time.Now(),
	}
	if update.PaymentRef != nil {
		values["payment_ref"] = *update.PaymentRef
	}

	var bookingM model.BookingModel
	result := repo.db.WithContext(ctx).
		Model(&bookingM).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ? AND version = ?", update.ID, string(update.ExpectedStatus), update.ExpectedVersion).
		Updates(values)

	if result.Error != nil {
		return nil, domainerrors.NewDatabaseExecuteError(result.Error, "failed to update booking")
	}

	if result.RowsAffected == 0 {
		// Distinguish a missing row from a lost race.
		if _, err := repo.FindBookingByIDForWrite(ctx, update.ID); err != nil {
			return nil, err
		}

		return nil, repository.ErrBookingVersionMismatch
	}

	return toBookingDomain(&bookingM), nil
}

// FindBookingsByRequester lists a requester's bookings, newest schedule first.
func (repo *bookingRepository) FindBookingsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	var bookingModels []*model.BookingModel

	if err := repo.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("scheduled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bookingModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find bookings by requester")
	}

	return toBookingDomains(bookingModels), nil
}

// FindBookingsByProvider lists a provider's bookings, soonest schedule first.
func (repo *bookingRepository) FindBookingsByProvider(ctx context.Context, providerID uuid.UUID, statuses []entity.BookingStatus, limit, offset int) ([]*entity.Booking, error) {
	var bookingModels []*model.BookingModel

	query := repo.db.WithContext(ctx).Where("provider_id = ?", providerID)
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, s := range statuses {
			values[i] = string(s)
		}
		query = query.Where("status IN ?", values)
	}

	if err := query.
		Order("scheduled_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&bookingModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find bookings by provider")
	}

	return toBookingDomains(bookingModels), nil
}

// --- Mapper Functions ---

func toBookingDomains(models []*model.BookingModel) []*entity.Booking {
	bookings := make([]*entity.Booking, 0, len(models))
	for _, bookingM := range models {
		bookings = append(bookings, toBookingDomain(bookingM))
	}

	return bookings
}

// toBookingDomain converts a GORM BookingModel to a domain Booking entity.
func toBookingDomain(data *model.BookingModel) *entity.Booking {
	if data == nil {
		return nil
	}

	return &entity.Booking{
		ID:             data.ID,
		RequesterID:    data.RequesterID,
		ProviderID:     data.ProviderID,
		ScheduledAt:    data.ScheduledAt,
		Purpose:        data.Purpose,
		Address:        data.Address,
		Notes:          data.Notes,
		Price:          data.Price,
		PaymentRef:     data.PaymentRef,
		Status:         entity.BookingStatus(data.Status),
		JourneyStarted: data.JourneyStarted,
		Version:        data.Version,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}

// fromBookingDomain converts a domain Booking entity to a GORM BookingModel.
func fromBookingDomain(data *entity.Booking) *model.BookingModel {
	if data == nil {
		return nil
	}

	return &model.BookingModel{
		ID:             data.ID,
		RequesterID:    data.RequesterID,
		ProviderID:     data.ProviderID,
		ScheduledAt:    data.ScheduledAt,
		Purpose:        data.Purpose,
		Address:        data.Address,
		Notes:          data.Notes,
		Price:          data.Price,
		PaymentRef:     data.PaymentRef,
		Status:         string(data.Status),
		JourneyStarted: data.JourneyStarted,
		Version:        data.Version,
		CreatedAt:      data.CreatedAt,
		UpdatedAt:      data.UpdatedAt,
	}
}
