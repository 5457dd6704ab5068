package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/felixgeelhaar/slotwatch/internal/booking/infrastructure/persistence"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/slotwatch/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/slotwatch/pkg/config"
)

const postgresMaxConns = 4

// RepositoryFactory opens the attempt-history store for the configured driver.
type RepositoryFactory struct {
	driver database.Driver
	sqlDB  *sql.DB
	pool   *pgxpool.Pool
}

// OpenRepositoryFactory resolves the driver and opens its connection.
// An empty DATABASE_URL selects the local SQLite file.
func OpenRepositoryFactory(ctx context.Context, cfg *config.Config) (*RepositoryFactory, error) {
	driver, err := database.ResolveDriver(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{driver: driver}
	switch driver {
	case database.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL, postgresMaxConns)
		if err != nil {
			return nil, err
		}
		f.pool = pool

	case database.DriverSQLite:
		path := cfg.SQLitePath
		if cfg.DatabaseURL != "" {
			path = database.SQLitePathFromURL(cfg.DatabaseURL)
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		f.sqlDB = db

	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	return f, nil
}

// AttemptRepository creates the attempt repository for the configured driver.
func (f *RepositoryFactory) AttemptRepository() domain.RescheduleAttemptRepository {
	if f.driver == database.DriverPostgres {
		return persistence.NewPostgresAttemptRepository(f.pool)
	}
	return persistence.NewSQLiteAttemptRepository(f.sqlDB)
}

// Driver returns the database driver type.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// Ping checks the underlying connection.
func (f *RepositoryFactory) Ping(ctx context.Context) error {
	if f.pool != nil {
		return f.pool.Ping(ctx)
	}
	return f.sqlDB.PingContext(ctx)
}

// Close closes the underlying connection.
func (f *RepositoryFactory) Close() error {
	if f.pool != nil {
		f.pool.Close()
		return nil
	}
	if f.sqlDB != nil {
		return f.sqlDB.Close()
	}
	return nil
}
