package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/db"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	driver  string
	name    string
	version string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	fs.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory for create and validate")
	fs.StringVar(&opts.driver, "driver", "", "sqlite or postgres (default CREWSYNC_STORE_DRIVER)")
	fs.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	fs.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.driver = strings.ToLower(strings.TrimSpace(opts.driver))
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	// create and validate work on files only
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		if err := migrate.ValidateEmbedded(); err != nil {
			return fmt.Errorf("embedded: %w", err)
		}
		fmt.Fprintln(out, "migration validation passed")
		return nil
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown command %q", opts.cmd)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, "no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	driver := opts.driver
	if driver == "" {
		driver = cfg.Store.NormalizedDriver()
	}
	if driver != config.StoreDriverSQLite && driver != config.StoreDriverPostgres {
		return fmt.Errorf("store driver %q has no schema; pass -driver=sqlite or -driver=postgres", driver)
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"driver": driver,
	})

	client, err := db.New(ctx, driver, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if opts.cmd != "version" {
		return migrate.Run(ctx, sqlDB, driver, opts.cmd, out)
	}
	if opts.version != "" {
		return migrate.MigrateToVersion(ctx, sqlDB, driver, opts.version)
	}
	current, err := migrate.CurrentVersion(ctx, sqlDB, driver)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "current version:", current)
	logg.Info(ctx, "schema version reported")
	return nil
}
