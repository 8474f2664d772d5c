// Package database opens SQL connections for the postgres and mysql storage
// drivers and carries transactions through context.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// Config holds database pool settings.
type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Connect opens a pooled connection for the postgres or mysql driver and
// pings it before returning.
func Connect(cfg Config) (*sql.DB, error) {
	dsn, err := normalizeDSN(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// normalizeDSN validates the driver. MySQL DSNs are reparsed so updated_at
// scans into time.Time in UTC.
func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case "postgres":
		return dsn, nil
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql connection string: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}
