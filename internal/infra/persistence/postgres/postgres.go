package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"darshan/config"
	"darshan/internal/domain/lifecycle"
	"darshan/internal/errors"

	pgLib "github.com/slighter12/go-lib/database/postgres"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the PostgreSQL client; reads go to replicas unless a repository asks for the primary.
func New(params Params) (*gorm.DB, error) {
	db, err := pgLib.New(params.Config.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL client")
	}
	db = db.Session(&gorm.Session{
		// Multi-step writes use txManager.Execute explicitly.
		SkipDefaultTransaction: true,
		Logger:                 newGormSlogLogger(params.Logger, params.Config),
	})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}

	mon := &dbMonitor{
		db:       db,
		sqlDB:    sqlDB,
		logger:   params.Logger,
		cfg:      params.Config.Database,
		replicas: params.Config.Postgres != nil && len(params.Config.Postgres.Replicas) > 0,
	}
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "failed to ping PostgreSQL")
			}

			go mon.run(monitorCtx)

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelMonitor()

			return errors.WithStack(sqlDB.Close())
		},
	})

	return db, nil
}

// dbMonitor samples connection pool contention and, with read replicas configured,
// how far the replicas trail the primary. A lag above the last convergence step means
// refetched views can still come back stale.
type dbMonitor struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	logger   *slog.Logger
	cfg      *config.DatabaseConfig
	replicas bool
}

func (m *dbMonitor) run(ctx context.Context) {
	if m.cfg == nil || m.cfg.MonitorInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	prev := m.sqlDB.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := m.sqlDB.Stats()
			m.checkPool(ctx, prev, cur)
			prev = cur

			if m.replicas {
				m.checkReplicaLag(ctx)
			}
		}
	}
}

func (m *dbMonitor) checkPool(ctx context.Context, prev, cur sql.DBStats) {
	waits := cur.WaitCount - prev.WaitCount
	if waits <= 0 {
		return
	}
	waited := cur.WaitDuration - prev.WaitDuration

	level := slog.LevelDebug
	if waited >= m.cfg.PoolWaitWarn {
		level = slog.LevelWarn
	}

	m.logger.LogAttrs(ctx, level, "Postgres pool wait",
		slog.Int64("waits", waits),
		slog.Duration("waited", waited),
		slog.Duration("avgWait", waited/time.Duration(waits)),
		slog.Int("openConns", cur.OpenConnections),
		slog.Int("inUseConns", cur.InUse),
		slog.Int("maxOpenConns", cur.MaxOpenConnections),
	)
}

func (m *dbMonitor) checkReplicaLag(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, m.cfg.MonitorInterval)
	defer cancel()

	// NULL on a server that is not replaying WAL
	var seconds sql.NullFloat64
	err := m.db.WithContext(queryCtx).
		Clauses(dbresolver.Read).
		Raw("SELECT EXTRACT(EPOCH FROM now() - pg_last_xact_replay_timestamp())").
		Scan(&seconds).Error
	if err != nil {
		m.logger.Debug("Replica lag probe failed", slog.Any("error", err))

		return
	}
	if !seconds.Valid {
		return
	}

	lag := time.Duration(seconds.Float64 * float64(time.Second))
	if lag > m.cfg.ReplicaLagWarn {
		m.logger.Warn("Replica lag exceeds the convergence window",
			slog.Duration("lag", lag),
			slog.Duration("window", m.cfg.ReplicaLagWarn),
		)
	}
}
