package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/crewsync/internal/agent"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/instance"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

const serviceName = "sync-agent"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"store_driver": cfg.Store.NormalizedDriver(),
		"remote":       cfg.Remote.BaseURL,
	})

	a, err := agent.New(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap sync agent", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing sync agent", err)
		}
	}()

	addr := net.JoinHostPort("127.0.0.1", cfg.App.Port)
	logg.Info(logg.WithField(ctx, "addr", addr), "starting sync agent")

	if err := a.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync agent stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync agent shutting down gracefully")
}
