// Package db opens the SQL store holding the pending submission queue and
// the notification inbox. SQLite is the default; Postgres serves shared
// deployments.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/logger"
)

// sqlitePragmas run on every new SQLite store.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
}

type Client struct {
	conn   *gorm.DB
	driver string
}

// New opens and tunes the configured database.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	tunePool(sqlDB, cfg)

	if cfg.IsSQLite() {
		for _, pragma := range sqlitePragmas {
			if err := conn.WithContext(ctx).Exec(pragma).Error; err != nil {
				_ = sqlDB.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "driver", cfg.Driver), "database connection established")
	}
	return &Client{conn: conn, driver: cfg.Driver}, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	if cfg.IsSQLite() {
		return sqlite.Open(cfg.DSN), nil
	}
	if cfg.Driver == config.DriverPostgres {
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// tunePool pins SQLite to one connection; it allows a single writer.
func tunePool(sqlDB *sql.DB, cfg config.DBConfig) {
	maxOpen := cfg.MaxOpenConns
	if cfg.IsSQLite() {
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
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

// NewFromConn wraps an already opened connection.
func NewFromConn(conn *gorm.DB, driver string) *Client {
	return &Client{conn: conn, driver: driver}
}

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Driver() string { return c.driver }

// Ping backs the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
