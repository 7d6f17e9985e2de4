package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/crewsync/internal/agent"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

const serviceName = "outbox-flush"

// outbox-flush runs a single flush pass and prints whatever is still queued.
func main() {
	employeeID := flag.String("employee", "", "only print items for this employee")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := agent.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap agent", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing agent", err)
		}
	}()

	if !a.Watcher.FlushNow(ctx) {
		logg.Warn(ctx, "another flush holds the lock; nothing sent")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a.Engine.List(ctx, *employeeID)); err != nil {
		logg.Error(ctx, "failed to print queue", err)
		os.Exit(1)
	}
}
