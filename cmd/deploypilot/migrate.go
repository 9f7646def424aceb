package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/deploypilot/deploypilot/internal/adapter/postgres"
)

// runMigrate applies, rolls back or reports history schema migrations.
func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file (default deploypilot.yaml if present)")
	steps := fs.Int("steps", 1, "number of migrations to roll back (down only)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: deploypilot migrate [up|down|version] [--steps N] [--config FILE]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn (or DATABASE_URL) is required")
	}

	ctx := context.Background()
	switch action {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		if *steps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *steps); err != nil {
			return err
		}
	case "version":
	default:
		fs.Usage()
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "schema version: %d\n", v)
	return nil
}
