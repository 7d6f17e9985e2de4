package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/crewsync/internal/lock"
	"github.com/angelmondragon/crewsync/pkg/clock"
	"github.com/angelmondragon/crewsync/pkg/enums"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/metrics"
)

// DefaultFlushInterval is the periodic flush cadence.
const DefaultFlushInterval = 60 * time.Second

// FlushFunc drains the outbox once.
type FlushFunc func(ctx context.Context) error

// RefreshFunc runs after a successful return online, e.g. a notification poll.
type RefreshFunc func(ctx context.Context) error

// WatcherParams wire a watcher. Source, Flush and Logger are required.
type WatcherParams struct {
	Source        Source
	Flush         FlushFunc
	Refresh       []RefreshFunc
	Lock          lock.Lock
	Logger        *logger.Logger
	Metrics       *metrics.JobMetrics
	Clock         clock.Clock
	FlushInterval time.Duration
}

// State is the snapshot exposed to the UI.
type State struct {
	State            enums.ConnectivityState `json:"state"`
	Online           bool                    `json:"online"`
	LastTransitionAt *time.Time              `json:"lastTransitionAt,omitempty"`
	LastFlushAt      *time.Time              `json:"lastFlushAt,omitempty"`
	LastFlushError   string                  `json:"lastFlushError,omitempty"`
}

// Watcher reacts to connectivity changes and schedules flushes.
type Watcher struct {
	source        Source
	flush         FlushFunc
	refresh       []RefreshFunc
	lock          lock.Lock
	logg          *logger.Logger
	metrics       *metrics.JobMetrics
	clock         clock.Clock
	flushInterval time.Duration

	mu    sync.Mutex
	state State
}

func NewWatcher(params WatcherParams) (*Watcher, error) {
	if params.Source == nil {
		return nil, errors.New("connectivity source is required")
	}
	if params.Flush == nil {
		return nil, errors.New("flush func is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	l := params.Lock
	if l == nil {
		l = lock.NewLocalLock()
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System{}
	}
	interval := params.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Watcher{
		source:        params.Source,
		flush:         params.Flush,
		refresh:       params.Refresh,
		lock:          l,
		logg:          params.Logger,
		metrics:       params.Metrics,
		clock:         clk,
		flushInterval: interval,
		state:         State{State: enums.ConnectivityUnknown},
	}, nil
}

// Run flushes once, then follows the source and the flush ticker until ctx
// is canceled. It waits for the source to stop before returning.
func (w *Watcher) Run(ctx context.Context) error {
	updates := make(chan bool, 1)
	sourceDone := make(chan error, 1)
	go func() { sourceDone <- w.source.Run(ctx, updates) }()

	w.FlushNow(ctx)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if sourceDone != nil {
				<-sourceDone
			}
			w.logg.Info(ctx, "connectivity watcher stopped")
			return ctx.Err()
		case err := <-sourceDone:
			if err != nil && ctx.Err() == nil {
				w.logg.Error(ctx, "connectivity source stopped", err)
			}
			sourceDone = nil
			updates = nil
		case online := <-updates:
			w.Observe(ctx, online)
		case <-ticker.C:
			w.FlushNow(ctx)
		}
	}
}

// Observe records a reachability observation and runs the online
// transition work when the state flips to online.
func (w *Watcher) Observe(ctx context.Context, online bool) {
	next := enums.ConnectivityOffline
	if online {
		next = enums.ConnectivityOnline
	}

	w.mu.Lock()
	prev := w.state.State
	if prev == next {
		w.mu.Unlock()
		return
	}
	now := w.clock.Now()
	w.state.State = next
	w.state.Online = online
	w.state.LastTransitionAt = &now
	w.mu.Unlock()

	w.logg.Info(w.logg.WithFields(ctx, map[string]any{
		"from": prev.String(),
		"to":   next.String(),
	}), "connectivity changed")
	if !online {
		return
	}
	w.FlushNow(ctx)
	for _, refresh := range w.refresh {
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "refresh after reconnect failed")
		}
	}
}

// FlushNow runs one flush unless another is already in progress. It reports
// whether this call ran the flush.
func (w *Watcher) FlushNow(ctx context.Context) bool {
	started := time.Now()
	ran, err := lock.Do(ctx, w.lock, func(ctx context.Context) error {
		return w.flush(ctx)
	})
	if !ran {
		if err != nil {
			w.logg.Error(ctx, "flush lock unavailable", err)
		} else {
			w.logg.Debug(ctx, "flush already running; skipped")
		}
		return false
	}
	w.metrics.Track(metrics.JobOutboxFlush, started, err)

	now := w.clock.Now()
	w.mu.Lock()
	w.state.LastFlushAt = &now
	w.state.LastFlushError = ""
	if err != nil {
		w.state.LastFlushError = err.Error()
	}
	w.mu.Unlock()
	if err != nil {
		w.logg.Error(ctx, "outbox flush failed", err)
	}
	return true
}

// State returns a copy of the current snapshot.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.state
	if w.state.LastTransitionAt != nil {
		t := *w.state.LastTransitionAt
		out.LastTransitionAt = &t
	}
	if w.state.LastFlushAt != nil {
		t := *w.state.LastFlushAt
		out.LastFlushAt = &t
	}
	return out
}
