package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
	"github.com/vyrodovalexey/ordcatalog/internal/retry"
)

// connectTimeout bounds the attempts to reach the database at startup.
const connectTimeout = 30 * time.Second

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return sqlite.Open(cfg.DSN), nil
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Open connects to the database described by cfg, retrying while it is
// unreachable, sizes the pool and migrates the schema when configured.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger observability.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:                                   NewGormLogger(logger, cfg.SlowQueryThreshold.Duration()),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var db *gorm.DB
	err = retry.Do(ctx, "database.connect", retry.DatabaseConnect, func(context.Context) error {
		var openErr error
		db, openErr = gorm.Open(dial, gormCfg)
		return openErr
	}, retry.WithOnRetry(func(attempt int, err error, wait time.Duration) {
		logger.Warn("database not reachable, retrying",
			observability.String("driver", dial.Name()),
			observability.Int("attempt", attempt),
			observability.Duration("backoff", wait),
			observability.Error(err))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dial.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if lifetime := cfg.ConnMaxLifetime.Duration(); lifetime > 0 {
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	logger.Info("database connected",
		observability.String("driver", dial.Name()),
		observability.Bool("auto_migrate", cfg.AutoMigrate))

	return db, nil
}

// Migrate creates or updates the catalog tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate catalog schema: %w", err)
	}
	return nil
}
