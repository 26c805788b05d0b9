package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"userapi/config"
	"userapi/internal/domain/lifecycle"
	"userapi/internal/errors"
	"userapi/internal/infra/persistence/model"

	"go.uber.org/fx"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

const (
	defaultPoolMonitorInterval  = 5 * time.Second
	dbPoolWarnDurationThreshold = 50 * time.Millisecond
)

// Params defines the required parameters
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// New creates the PostgreSQL client. Reads are spread over replicas when any are configured.
func New(params Params) (*gorm.DB, error) {
	cfg := params.Config.Postgres
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("postgres.url is required")
	}

	db, err := gorm.Open(pgdriver.Open(cfg.URL), &gorm.Config{
		// Disable GORM's per-statement implicit transaction.
		// Multi-step atomic operations go through txManager.Execute.
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 newQueryLogger(params.Logger, params.Config),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL client")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PostgreSQL sql.DB")
	}
	applyPoolLimits(sqlDB, cfg)

	if len(cfg.Replicas) > 0 {
		if err := registerReplicas(db, params.Config); err != nil {
			return nil, err
		}
		params.Logger.Info("PostgreSQL read replicas registered", slog.Int("replicas", len(cfg.Replicas)))
	}

	interval := cfg.PoolMonitorInterval
	if interval == 0 {
		interval = defaultPoolMonitorInterval
	}

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	params.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := sqlDB.PingContext(ctx); err != nil {
				return errors.Wrap(err, "failed to ping PostgreSQL")
			}

			if cfg.AutoMigrate {
				if err := db.WithContext(ctx).AutoMigrate(&model.UserModel{}); err != nil {
					return errors.Wrap(err, "failed to migrate users table")
				}
			}

			if interval > 0 {
				go monitorDBPool(monitorCtx, params.Logger, sqlDB, interval)
			}

			return nil
		},
		OnStop: func(_ context.Context) error {
			cancelMonitor()

			return errors.WithStack(sqlDB.Close())
		},
	})

	return db, nil
}

func applyPoolLimits(sqlDB *sql.DB, cfg *config.PostgresConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func registerReplicas(db *gorm.DB, cfg *config.Config) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.Postgres.Replicas))
	for _, replica := range cfg.Postgres.Replicas {
		replicas = append(replicas, pgdriver.Open(replica.URL))
	}

	resolver := dbresolver.Register(dbresolver.Config{
		Replicas:          replicas,
		Policy:            dbresolver.RandomPolicy{},
		TraceResolverMode: cfg.Env.Debug,
	})
	if cfg.Postgres.MaxOpenConns > 0 {
		resolver = resolver.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.MaxIdleConns > 0 {
		resolver = resolver.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}
	if cfg.Postgres.ConnMaxLifetime > 0 {
		resolver = resolver.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}
	if cfg.Postgres.ConnMaxIdleTime > 0 {
		resolver = resolver.SetConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime)
	}

	return errors.Wrap(db.Use(resolver), "failed to register read replicas")
}

func monitorDBPool(ctx context.Context, logger *slog.Logger, sqlDB *sql.DB, interval time.Duration) {
	if logger == nil || sqlDB == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := sqlDB.Stats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := sqlDB.Stats()
			logPoolWait(ctx, logger, prev, cur)
			prev = cur
		}
	}
}

func logPoolWait(ctx context.Context, logger *slog.Logger, prev, cur sql.DBStats) {
	waitDelta := cur.WaitCount - prev.WaitCount
	if waitDelta <= 0 {
		return
	}
	waitDurationDelta := cur.WaitDuration - prev.WaitDuration

	attrs := []slog.Attr{
		slog.Int64("waitCountDelta", waitDelta),
		slog.Duration("waitDurationDelta", waitDurationDelta),
		slog.Duration("avgWait", waitDurationDelta/time.Duration(waitDelta)),
		slog.Int("maxOpenConns", cur.MaxOpenConnections),
		slog.Int("openConns", cur.OpenConnections),
		slog.Int("inUseConns", cur.InUse),
		slog.Int("idleConns", cur.Idle),
	}
	if waitDurationDelta >= dbPoolWarnDurationThreshold {
		logger.LogAttrs(ctx, slog.LevelWarn, "Postgres pool wait detected", attrs...)
	} else {
		logger.LogAttrs(ctx, slog.LevelDebug, "Postgres pool wait observed", attrs...)
	}
}
