// Package datastore opens the gorm connections used by the legacy fetcher
// and the error ledger.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// Options configures Open.
type Options struct {
	Driver        string // mysql, sqlite or postgres
	DSN           string
	MaxOpenConns  int           // 0 keeps the driver default
	SlowThreshold time.Duration // passed to the gorm logger adapter
	Logger        logger.Logger
}

const (
	defaultMaxIdleConns = 4
	sqlitePragmas       = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
)

// Open connects to the configured database and applies pool settings.
func Open(opts Options) (*gorm.DB, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	dialector, err := dialectorFor(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, opts.SlowThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("driver", opts.Driver).
			Context("operation", "open").
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get-sql-db").
			Build()
	}

	switch opts.Driver {
	case conf.DriverSQLite:
		// sqlite has a single writer and :memory: databases are per connection
		sqlDB.SetMaxOpenConns(1)
	default:
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
			sqlDB.SetMaxIdleConns(min(defaultMaxIdleConns, opts.MaxOpenConns))
		} else {
			sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Debug("database opened",
		logger.String("driver", opts.Driver),
		logger.String("dsn", logger.RedactSensitiveData(opts.DSN)))
	return db, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.Newf("empty DSN for driver %s", driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	switch driver {
	case conf.DriverMySQL:
		return mysql.Open(dsn), nil
	case conf.DriverPostgres:
		return postgres.Open(dsn), nil
	case conf.DriverSQLite:
		path, err := sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(path), nil
	default:
		return nil, errors.Newf("unsupported database driver %q", driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// sqliteDSN appends the WAL pragmas to file databases and makes sure the
// parent directory exists. In-memory databases are returned unchanged.
func sqliteDSN(dsn string) (string, error) {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:") {
		return dsn, nil
	}
	if strings.Contains(dsn, "?") {
		return dsn, nil
	}

	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "create-sqlite-dir").
				Context("path", dir).
				Build()
		}
	}
	return fmt.Sprintf("%s?%s", dsn, sqlitePragmas), nil
}

// Close closes the underlying connection pool. A nil db is a no-op.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
