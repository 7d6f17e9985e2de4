// Package agent wires the storage backend, outbox engine, remote client,
// connectivity watcher, notification poller and control API into one
// process.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/crewsync/api/routes"
	"github.com/angelmondragon/crewsync/api/validators"
	"github.com/angelmondragon/crewsync/internal/connectivity"
	"github.com/angelmondragon/crewsync/internal/lock"
	"github.com/angelmondragon/crewsync/internal/notifications"
	"github.com/angelmondragon/crewsync/internal/outbox"
	"github.com/angelmondragon/crewsync/internal/outbox/payloads"
	"github.com/angelmondragon/crewsync/internal/remote"
	"github.com/angelmondragon/crewsync/internal/storage"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/metrics"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
	flushLockName     = "outbox_flush"
)

// Agent holds every long-lived component.
type Agent struct {
	cfg  *config.Config
	logg *logger.Logger

	Registry      *prometheus.Registry
	Backend       *storage.Backend
	Engine        *outbox.Engine
	Remote        *remote.Client
	Dispatcher    *remote.Dispatcher
	Payloads      *payloads.Registry
	FlushLock     lock.Lock
	Watcher       *connectivity.Watcher
	Notifications *notifications.Manager
	Poller        *notifications.Runner
}

// New opens storage and builds the components. Close releases them.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Agent, error) {
	a := &Agent{cfg: cfg, logg: logg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	outboxMetrics := metrics.NewOutboxMetrics(a.Registry)
	jobMetrics := metrics.NewJobMetrics(a.Registry)

	backend, err := storage.Open(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Backend = backend

	fail := func(err error) (*Agent, error) {
		return nil, multierr.Append(err, a.Close())
	}

	a.Remote, err = remote.NewClientFromConfig(cfg.Remote)
	if err != nil {
		return fail(fmt.Errorf("remote client: %w", err))
	}
	a.Dispatcher = remote.NewDispatcher(a.Remote)
	a.Payloads = payloads.NewRegistry(validators.ValidateStruct)

	a.Engine, err = outbox.NewEngine(outbox.EngineParams{
		Store:      backend.Store,
		Logger:     logg,
		Metrics:    outboxMetrics,
		QueueKey:   cfg.Store.QueueKey,
		StaleAfter: cfg.Outbox.StaleAfter,
	})
	if err != nil {
		return fail(fmt.Errorf("outbox engine: %w", err))
	}

	a.FlushLock, err = a.buildFlushLock()
	if err != nil {
		return fail(err)
	}

	a.Notifications, err = notifications.NewManager(notifications.ManagerParams{
		Feed:          remote.NewNotificationFeed(a.Remote),
		Store:         backend.Store,
		Logger:        logg,
		ToastDuration: cfg.Notifications.ToastDuration,
	})
	if err != nil {
		return fail(fmt.Errorf("notifications: %w", err))
	}
	for _, employeeID := range cfg.Notifications.EmployeeIDs {
		if _, err := a.Notifications.Track(employeeID); err != nil {
			return fail(fmt.Errorf("track employee %q: %w", employeeID, err))
		}
	}
	a.Poller, err = notifications.NewRunner(notifications.RunnerParams{
		Manager:  a.Notifications,
		Logger:   logg,
		Metrics:  jobMetrics,
		Interval: cfg.Notifications.PollInterval,
	})
	if err != nil {
		return fail(fmt.Errorf("notification poller: %w", err))
	}

	prober, err := connectivity.NewProber(connectivity.ProberParams{
		Checker:  a.Remote,
		URL:      cfg.Connectivity.ResolveProbeURL(cfg.Remote),
		Interval: cfg.Connectivity.ProbeInterval,
		Timeout:  cfg.Connectivity.ProbeTimeout,
		Logger:   logg,
		Metrics:  jobMetrics,
	})
	if err != nil {
		return fail(fmt.Errorf("prober: %w", err))
	}
	a.Watcher, err = connectivity.NewWatcher(connectivity.WatcherParams{
		Source: prober,
		Flush:  a.Flush,
		Refresh: []connectivity.RefreshFunc{func(ctx context.Context) error {
			return a.Notifications.PollAll(ctx)
		}},
		Lock:          a.FlushLock,
		Logger:        logg,
		Metrics:       jobMetrics,
		FlushInterval: cfg.Outbox.FlushInterval,
	})
	if err != nil {
		return fail(fmt.Errorf("watcher: %w", err))
	}
	return a, nil
}

// buildFlushLock shares the lock through Redis whenever the queue itself
// lives there, so agents on the same queue do not flush concurrently.
func (a *Agent) buildFlushLock() (lock.Lock, error) {
	if a.Backend.Redis == nil || a.cfg.Store.NormalizedDriver() != config.StoreDriverRedis {
		return lock.NewLocalLock(), nil
	}
	l, err := lock.NewRedisLock(a.Backend.Redis, a.Backend.Redis.LockKey(flushLockName+":"+a.cfg.Store.QueueKey), a.cfg.Outbox.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("flush lock: %w", err)
	}
	return l, nil
}

// Flush runs one pass over the outbox through the REST dispatcher.
func (a *Agent) Flush(ctx context.Context) error {
	remaining := a.Engine.Flush(ctx, a.Dispatcher)
	if len(remaining) > 0 {
		a.logg.Info(a.logg.WithField(ctx, "remaining", len(remaining)), "outbox flush left items queued")
	}
	return ctx.Err()
}

// Handler builds the control API.
func (a *Agent) Handler() http.Handler {
	return routes.NewRouter(routes.Deps{
		Config:        a.cfg,
		Logger:        a.logg,
		Store:         a.Backend.Store,
		Outbox:        a.Engine,
		Payloads:      a.Payloads,
		Flusher:       a.Watcher,
		Notifications: a.Notifications,
		Connectivity:  a.Watcher,
		Gatherer:      a.Registry,
	})
}

// Run serves the control API on addr and runs the watcher and poller until
// ctx is canceled or one of them fails.
func (a *Agent) Run(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	record := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
			return
		}
		mu.Lock()
		errs = multierr.Append(errs, err)
		mu.Unlock()
		cancel()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		record(a.Watcher.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		record(a.Poller.Run(ctx))
	}()
	go func() {
		defer wg.Done()
		record(server.ListenAndServe())
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	record(server.Shutdown(shutdownCtx))
	wg.Wait()
	return errs
}

// Close stops toast timers and releases storage clients.
func (a *Agent) Close() error {
	if a.Poller != nil {
		a.Poller.Close()
	} else if a.Notifications != nil {
		a.Notifications.Close()
	}
	if a.Backend != nil {
		return a.Backend.Close()
	}
	return nil
}
