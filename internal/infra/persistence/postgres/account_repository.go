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
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// accountRepository implements the repository.AccountRepository interface.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (repo *accountRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findAccount(repo.db.WithContext(ctx), id)
}

func (repo *accountRepository) FindAccountByIDForWrite(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findAccount(repo.db.WithContext(ctx).Clauses(dbresolver.Write), id)
}

func (repo *accountRepository) findAccount(db *gorm.DB, id uuid.UUID) (*entity.Account, error) {
	var accountM model.AccountModel

	if err := db.Where("id = ?", id).First(&accountM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account by ID")
	}

	return toAccountDomain(&accountM), nil
}

// SubmitApplication stores the snapshot and resets the application to pending.
func (repo *accountRepository) SubmitApplication(ctx context.Context, id uuid.UUID, application *entity.ProviderApplication, at time.Time) error {
	snapshot := datatypes.NewJSONType(*application)

	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"application":        snapshot,
			"application_status": string(entity.ApprovalStatusPending),
			"applied_at":         at,
			"decided_at":         nil,
		})

	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to submit provider application")
	}

	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// UpdateProviderAccess writes is_provider and application_status in one statement.
func (repo *accountRepository) UpdateProviderAccess(ctx context.Context, id uuid.UUID, isProvider bool, status *entity.ApprovalStatus, at time.Time) error {
	values := map[string]any{
		"is_provider": isProvider,
		"decided_at":  at,
	}
	if status != nil {
		values["application_status"] = string(*status)
	} else {
		values["application_status"] = nil
	}

	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ?", id).
		Updates(values)

	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update provider access")
	}

	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

func (repo *accountRepository) FindAccountsByApplicationStatus(ctx context.Context, status entity.ApprovalStatus, limit, offset int) ([]*entity.Account, error) {
	var accountModels []*model.AccountModel

	if err := repo.db.WithContext(ctx).
		Where("application_status = ?", string(status)).
		Order("applied_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&accountModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find accounts by application status")
	}

	accounts := make([]*entity.Account, 0, len(accountModels))
	for _, accountM := range accountModels {
		accounts = append(accounts, toAccountDomain(accountM))
	}

	return accounts, nil
}

// --- Mapper Functions ---

// toAccountDomain converts a GORM AccountModel to a domain Account entity.
func toAccountDomain(data *model.AccountModel) *entity.Account {
	if data == nil {
		return nil
	}

	account := &entity.Account{
		ID:         data.ID,
		Email:      data.Email,
		Name:       data.Name,
		IsAdmin:    data.IsAdmin,
		IsProvider: data.IsProvider,
		AppliedAt:  data.AppliedAt,
		DecidedAt:  data.DecidedAt,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
	if data.ApplicationStatus != nil {
		status := entity.ApprovalStatus(*data.ApplicationStatus)
		account.ApplicationStatus = &status
	}
	if data.Application != nil {
		application := data.Application.Data()
		account.Application = &application
	}

	return account
}
