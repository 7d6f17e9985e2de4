package notifications

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/crewsync/internal/storage"
	"github.com/angelmondragon/crewsync/pkg/clock"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/metrics"
	"go.uber.org/multierr"
)

// DefaultPollInterval is the cadence of background polls.
const DefaultPollInterval = 30 * time.Second

// ManagerParams wires a manager. Feed, Store and Logger are required.
type ManagerParams struct {
	Feed          Feed
	Store         storage.DocumentStore
	Logger        *logger.Logger
	Clock         clock.Clock
	ToastDuration time.Duration
	AfterFunc     AfterFunc
}

// Manager owns one Merger per tracked employee.
type Manager struct {
	params ManagerParams

	mu      sync.Mutex
	mergers map[string]*Merger
}

func NewManager(params ManagerParams) (*Manager, error) {
	if params.Feed == nil {
		return nil, errors.New("notification feed is required")
	}
	if params.Store == nil {
		return nil, errors.New("document store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Manager{params: params, mergers: map[string]*Merger{}}, nil
}

// Track returns the merger for employeeID, creating it on first use.
func (m *Manager) Track(employeeID string) (*Merger, error) {
	id := strings.TrimSpace(employeeID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if merger, ok := m.mergers[id]; ok {
		return merger, nil
	}
	merger, err := NewMerger(MergerParams{
		EmployeeID:    id,
		Feed:          m.params.Feed,
		Store:         m.params.Store,
		Logger:        m.params.Logger,
		Clock:         m.params.Clock,
		ToastDuration: m.params.ToastDuration,
		AfterFunc:     m.params.AfterFunc,
	})
	if err != nil {
		return nil, err
	}
	m.mergers[id] = merger
	return merger, nil
}

// Tracked lists the tracked employee ids in sorted order.
func (m *Manager) Tracked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.mergers))
	for id := range m.mergers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PollAll polls every tracked employee. One failure does not stop the others.
func (m *Manager) PollAll(ctx context.Context) error {
	var errs error
	for _, id := range m.Tracked() {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		merger, err := m.Track(id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, err := merger.Poll(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Close cancels every pending toast timer.
func (m *Manager) Close() {
	m.mu.Lock()
	mergers := make([]*Merger, 0, len(m.mergers))
	for _, merger := range m.mergers {
		mergers = append(mergers, merger)
	}
	m.mu.Unlock()
	for _, merger := range mergers {
		merger.Close()
	}
}

// RunnerParams configure the background poller.
type RunnerParams struct {
	Manager  *Manager
	Logger   *logger.Logger
	Metrics  *metrics.JobMetrics
	Interval time.Duration
}

// Runner polls every tracked employee on a fixed cadence.
type Runner struct {
	manager  *Manager
	logg     *logger.Logger
	metrics  *metrics.JobMetrics
	interval time.Duration
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Manager == nil {
		return nil, errors.New("notification manager is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Runner{
		manager:  params.Manager,
		logg:     params.Logger,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run polls immediately and then every interval until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	ctx = r.logg.WithField(ctx, "job", metrics.JobNotificationsPoll)
	r.PollOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "notification poller stopped")
			return ctx.Err()
		case <-ticker.C:
			r.PollOnce(ctx)
		}
	}
}

// PollOnce runs one pass over the tracked employees. Failures are only logged.
func (r *Runner) PollOnce(ctx context.Context) {
	started := time.Now()
	err := r.manager.PollAll(ctx)
	r.metrics.Track(metrics.JobNotificationsPoll, started, err)
	if err != nil && ctx.Err() == nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "notification poll pass had failures")
	}
}

// Close cancels pending toast timers.
func (r *Runner) Close() {
	r.manager.Close()
}
