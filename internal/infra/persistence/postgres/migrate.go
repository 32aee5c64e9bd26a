package postgres

import (
	"context"
	"log/slog"

	"darshan/config"
	"darshan/internal/errors"
	"darshan/migrations"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// MigratorParams defines the dependencies of the schema migrator.
type MigratorParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
}

// Migrator applies the embedded goose migrations.
type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewMigrator builds the migrator and, when migration.autoMigrate is set, runs it on start.
func NewMigrator(params MigratorParams) (*Migrator, error) {
	sqlDB, err := params.DB.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create goose provider")
	}

	m := &Migrator{provider: provider, logger: params.Logger}

	if params.Config.Migration != nil && params.Config.Migration.AutoMigrate {
		params.Append(fx.Hook{
			OnStart: m.Up,
		})
	}

	return m, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}

	for _, r := range results {
		m.logger.Info("Applied migration",
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}

	return nil
}
