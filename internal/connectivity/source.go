// Package connectivity tracks whether the remote API is reachable and turns
// reachability into flush and refresh triggers.
package connectivity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/metrics"
)

const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// Source emits reachability observations on updates until ctx is done.
// Repeated values are fine; the watcher only reacts to changes.
type Source interface {
	Run(ctx context.Context, updates chan<- bool) error
}

// Checker answers a single reachability probe.
type Checker interface {
	Probe(ctx context.Context, probeURL string) error
}

// ProberParams configure an HTTP health prober. Checker and Logger are required.
type ProberParams struct {
	Checker  Checker
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logger.Logger
	Metrics  *metrics.JobMetrics
}

// Prober polls a health URL and reports online when it answers.
type Prober struct {
	checker  Checker
	url      string
	interval time.Duration
	timeout  time.Duration
	logg     *logger.Logger
	metrics  *metrics.JobMetrics
}

func NewProber(params ProberParams) (*Prober, error) {
	if params.Checker == nil {
		return nil, errors.New("probe checker is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		checker:  params.Checker,
		url:      strings.TrimSpace(params.URL),
		interval: interval,
		timeout:  timeout,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Run probes immediately and then every interval.
func (p *Prober) Run(ctx context.Context, updates chan<- bool) error {
	ctx = p.logg.WithField(ctx, "job", metrics.JobConnectivityProbe)
	if !p.emit(ctx, updates, p.Check(ctx)) {
		return ctx.Err()
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.emit(ctx, updates, p.Check(ctx)) {
				return ctx.Err()
			}
		}
	}
}

// Check runs one probe bounded by the probe timeout.
func (p *Prober) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	started := time.Now()
	err := p.checker.Probe(probeCtx, p.url)
	p.metrics.Track(metrics.JobConnectivityProbe, started, err)
	if err != nil && ctx.Err() == nil {
		p.logg.Debug(p.logg.WithField(ctx, "error", err.Error()), "connectivity probe failed")
	}
	return err == nil
}

func (p *Prober) emit(ctx context.Context, updates chan<- bool, online bool) bool {
	select {
	case <-ctx.Done():
		return false
	case updates <- online:
		return true
	}
}

// ChannelSource forwards values from a channel. It stops when the channel is
// closed or ctx is done.
type ChannelSource <-chan bool

func (c ChannelSource) Run(ctx context.Context, updates chan<- bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-c:
			if !ok {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case updates <- online:
			}
		}
	}
}

var (
	_ Source = (*Prober)(nil)
	_ Source = ChannelSource(nil)
)
