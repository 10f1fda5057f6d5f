package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorr/vendorr-edge/pkg/config"
)

func sqliteConfig(t *testing.T) config.DBConfig {
	t.Helper()
	return config.DBConfig{
		Driver:          config.DriverSQLite,
		DSN:             "file:" + filepath.Join(t.TempDir(), "edge.db") + "?_busy_timeout=5000",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

func TestNewSQLiteAppliesPragmasAndPool(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, sqliteConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(ctx))
	assert.Equal(t, config.DriverSQLite, client.Driver())

	var mode string
	require.NoError(t, client.DB().Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, client.DB().Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)

	d, err := dialectorFor(config.DBConfig{Driver: config.DriverPostgres, DSN: "postgres://localhost/vendorr"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(config.DBConfig{Driver: "SQLite", DSN: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: config.DriverSQLite}, nil)
	assert.Error(t, err)
}

func TestCloseStopsPing(t *testing.T) {
	client, err := New(context.Background(), sqliteConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.Error(t, client.Ping(context.Background()))
}
