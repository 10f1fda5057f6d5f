package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vendorr/vendorr-edge/pkg/config"
	"github.com/vendorr/vendorr-edge/pkg/db"
	"github.com/vendorr/vendorr-edge/pkg/logger"
	"github.com/vendorr/vendorr-edge/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// dbCommand runs against the configured notification store.
type dbCommand func(ctx context.Context, sqlDB *sql.DB, driver string, opts options) error

var dbCommands = map[string]dbCommand{
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"status": gooseCommand("status"),
	"version": func(ctx context.Context, sqlDB *sql.DB, driver string, opts options) error {
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, driver, opts.dir, opts.version)
	},
}

func gooseCommand(name string) dbCommand {
	return func(ctx context.Context, sqlDB *sql.DB, driver string, opts options) error {
		return migrate.Run(ctx, sqlDB, driver, opts.dir, name)
	}
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (empty uses the embedded migrations)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// create and validate only touch files, so they work without a config.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	command, ok := dbCommands[opts.cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"kind":   cfg.Service.Kind,
		"cmd":    opts.cmd,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	logg.Info(ctx, "migrate ready")
	if err := command(ctx, sqlDB, cfg.DB.Driver, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration complete")
	return nil
}
