package postgres

import (
	"context"

	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// locationSampleRepository keeps the latest sample per booking in PostgreSQL.
type locationSampleRepository struct {
	db *gorm.DB
}

// NewLocationSampleRepository is the constructor for locationSampleRepository.
func NewLocationSampleRepository(db *gorm.DB) repository.LocationSampleRepository {
	return &locationSampleRepository{
		db: db,
	}
}

// SaveLatestSample upserts the sample keyed by booking.
func (repo *locationSampleRepository) SaveLatestSample(ctx context.Context, sample *entity.LocationSample) error {
	sampleM := &model.LocationSampleModel{
		BookingID:        sample.BookingID,
		Latitude:         sample.Latitude,
		Longitude:        sample.Longitude,
		Speed:            sample.Speed,
		EstimatedArrival: sample.EstimatedArrival,
		CapturedAt:       sample.CapturedAt,
	}

	if err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "booking_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "speed", "estimated_arrival", "captured_at"}),
		}).
		Create(sampleM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrBookingNotFound
		}
		if isCheckConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("coordinates out of range")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to save location sample")
	}

	return nil
}

func (repo *locationSampleRepository) FindLatestSample(ctx context.Context, bookingID uuid.UUID) (*entity.LocationSample, error) {
	var sampleM model.LocationSampleModel

	if err := repo.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&sampleM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrLocationSampleNotFound
		}

		return nil, errors.Wrap(err, "failed to find location sample")
	}

	return &entity.LocationSample{
		BookingID:        sampleM.BookingID,
		Latitude:         sampleM.Latitude,
		Longitude:        sampleM.Longitude,
		Speed:            sampleM.Speed,
		EstimatedArrival: sampleM.EstimatedArrival,
		CapturedAt:       sampleM.CapturedAt,
	}, nil
}

func (repo *locationSampleRepository) DeleteSample(ctx context.Context, bookingID uuid.UUID) error {
	if err := repo.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Delete(&model.LocationSampleModel{}).Error; err != nil {
		return errors.Wrap(err, "failed to delete location sample")
	}

	return nil
}
