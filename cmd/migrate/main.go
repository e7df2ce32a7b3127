package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/gasflow/ops-console/pkg/config"
	"github.com/gasflow/ops-console/pkg/db"
	"github.com/gasflow/ops-console/pkg/logger"
	"github.com/gasflow/ops-console/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory (use \"migrations\" for the embedded set)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	// create and validate only touch files, so they run without any config.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			fail(logg, errors.New("missing -name for create"))
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			fail(logg, err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			fail(logg, err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(logg, err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(context.Background(), cfg, logg, opts); err != nil {
		fail(logg, err)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	dialect := client.Dialect()
	ctx = logg.WithFields(ctx, map[string]any{"cmd": opts.cmd, "dir": opts.dir, "dialect": dialect})
	logg.Info(ctx, "migrate ready")

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func fail(logg *logger.Logger, err error) {
	logg.Error(context.Background(), "migrate failed", err)
	os.Exit(1)
}
