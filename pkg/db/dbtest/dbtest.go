// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/db"
	"github.com/vendorr/vendorr-edge/pkg/migrate"
)

// Open returns a client backed by a private in-memory database with every
// embedded migration applied.
func Open(t *testing.T) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := migrate.Run(context.Background(), sqlDB, config.DriverSQLite, "", "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewFromConn(conn, config.DriverSQLite)
}
