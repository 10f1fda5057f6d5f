package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/vendorr/vendorr-edge/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

// Migrations ships the SQL files with the binary so the edge can self-migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// StatusOutput receives the table printed by the status command.
var StatusOutput io.Writer = os.Stdout

// Dialect maps a configured driver to its goose dialect.
func Dialect(driver string) (goose.Dialect, error) {
	switch driver {
	case config.DriverSQLite:
		return goose.DialectSQLite3, nil
	case config.DriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported migration driver %q", driver)
	}
}

// source returns the migration files: dir on disk, or the embedded set when
// dir is empty.
func source(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(Migrations, embeddedDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return sub, nil
}

func newProvider(db *sql.DB, driver, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

// Run executes up, down, reset or status.
func Run(ctx context.Context, db *sql.DB, driver, dir, command string) error {
	provider, err := newProvider(db, driver, dir)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		_, err = provider.Up(ctx)
	case "down":
		_, err = provider.Down(ctx)
	case "reset":
		_, err = provider.DownTo(ctx, 0)
	case "status":
		err = printStatus(ctx, provider)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func printStatus(ctx context.Context, provider *goose.Provider) error {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		applied := "pending"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(StatusOutput, "%-20s %s\n", applied, st.Source.Path)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver, dir, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	provider, err := newProvider(db, driver, dir)
	if err != nil {
		return err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current < target:
		_, err = provider.UpTo(ctx, target)
	case current > target:
		_, err = provider.DownTo(ctx, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("goose migrate to %d: %w", target, err)
	}
	return nil
}
