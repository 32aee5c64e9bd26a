package postgres

import (
	"context"

	"darshan/internal/domain/entity"
	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// providerProfileRepository implements the repository.ProviderProfileRepository interface.
type providerProfileRepository struct {
	db *gorm.DB
}

// NewProviderProfileRepository is the constructor for providerProfileRepository.
func NewProviderProfileRepository(db *gorm.DB) repository.ProviderProfileRepository {
	return &providerProfileRepository{
		db: db,
	}
}

// CreateProviderProfile persists a new profile; user_id is unique.
func (repo *providerProfileRepository) CreateProviderProfile(ctx context.Context, profile *entity.ProviderProfile) error {
	if profile.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate provider profile ID")
		}
		profile.ID = id
	}
	profileM := fromProviderProfileDomain(profile)

	if err := repo.db.WithContext(ctx).Create(profileM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrProviderProfileExists
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrAccountNotFound.WrapMessage("provider profile owner does not exist")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create provider profile")
	}

	profile.CreatedAt = profileM.CreatedAt
	profile.UpdatedAt = profileM.UpdatedAt

	return nil
}

// FindProviderProfileByID retrieves a profile by its ID.
func (repo *providerProfileRepository) FindProviderProfileByID(ctx context.Context, id uuid.UUID) (*entity.ProviderProfile, error) {
	var profileM model.ProviderProfileModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&profileM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProviderProfileNotFound
		}

		return nil, errors.Wrap(err, "failed to find provider profile by ID")
	}

	return toProviderProfileDomain(&profileM), nil
}

// FindProviderProfileByUserID reads from the primary because decisions act on the result.
func (repo *providerProfileRepository) FindProviderProfileByUserID(ctx context.Context, userID uuid.UUID) (*entity.ProviderProfile, error) {
	var profileM model.ProviderProfileModel

	if err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("user_id = ?", userID).
		First(&profileM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProviderProfileNotFound
		}

		return nil, errors.Wrap(err, "failed to find provider profile by user ID")
	}

	return toProviderProfileDomain(&profileM), nil
}

// UpdateProviderApprovalStatus sets approval_status on the profile owned by userID.
func (repo *providerProfileRepository) UpdateProviderApprovalStatus(ctx context.Context, userID uuid.UUID, status entity.ApprovalStatus) error {
	result := repo.db.WithContext(ctx).
		Model(&model.ProviderProfileModel{}).
		Where("user_id = ?", userID).
		Update("approval_status", string(status))

	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update provider approval status")
	}

	if result.RowsAffected == 0 {
		return repository.ErrProviderProfileNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toProviderProfileDomain converts a GORM ProviderProfileModel to a domain ProviderProfile entity.
func toProviderProfileDomain(data *model.ProviderProfileModel) *entity.ProviderProfile {
	if data == nil {
		return nil
	}

	return &entity.ProviderProfile{
		ID:              data.ID,
		UserID:          data.UserID,
		Name:            data.Name,
		Bio:             data.Bio,
		Specialties:     []string(data.Specialties),
		ExperienceYears: data.ExperienceYears,
		Price:           data.Price,
		Availability:    data.Availability,
		Location:        data.Location,
		ApprovalStatus:  entity.ApprovalStatus(data.ApprovalStatus),
		Rating:          data.Rating,
		CreatedAt:       data.CreatedAt,
		UpdatedAt:       data.UpdatedAt,
	}
}

// fromProviderProfileDomain converts a domain ProviderProfile entity to a GORM ProviderProfileModel.
func fromProviderProfileDomain(data *entity.ProviderProfile) *model.ProviderProfileModel {
	if data == nil {
		return nil
	}

	specialties := data.Specialties
	if specialties == nil {
		specialties = []string{}
	}

	return &model.ProviderProfileModel{
		ID:              data.ID,
		UserID:          data.UserID,
		Name:            data.Name,
		Bio:             data.Bio,
		Specialties:     datatypes.JSONSlice[string](specialties),
		ExperienceYears: data.ExperienceYears,
		Price:           data.Price,
		Availability:    data.Availability,
		Location:        data.Location,
		ApprovalStatus:  string(data.ApprovalStatus),
		Rating:          data.Rating,
		CreatedAt:       data.CreatedAt,
		UpdatedAt:       data.UpdatedAt,
	}
}
