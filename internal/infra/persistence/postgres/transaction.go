package postgres

import (
	"context"

	domainerrors "darshan/internal/domain/errors"
	"darshan/internal/domain/repository"
	"darshan/internal/errors"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type txManager struct {
	db *gorm.DB
}

// txRepositories hands out repositories bound to one open transaction.
type txRepositories struct {
	tx *gorm.DB
}

func (r txRepositories) NewBookingRepository() repository.BookingRepository {
	return NewBookingRepository(r.tx)
}

func (r txRepositories) NewAccountRepository() repository.AccountRepository {
	return NewAccountRepository(r.tx)
}

func (r txRepositories) NewProviderProfileRepository() repository.ProviderProfileRepository {
	return NewProviderProfileRepository(r.tx)
}

// NewTransactionManager runs unit-of-work callbacks on the primary.
func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &txManager{db: db}
}

// Execute commits when fn returns nil and rolls back otherwise, including on panic.
// fn's own error is returned untouched; begin and commit failures surface as TRANSACTION_FAILED.
func (m *txManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	var fnErr error

	err := m.db.WithContext(ctx).Clauses(dbresolver.Write).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(txRepositories{tx: tx})

		return fnErr
	})

	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	default:
		return errors.Wrap(domainerrors.ErrTransactionFailed, err.Error())
	}
}
