package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := NewJobMetrics(reg)
	jobs.ObserveDuration(JobOutboxFlush, 250*time.Millisecond)
	jobs.IncSuccess(JobOutboxFlush)
	jobs.Track(JobNotificationsPoll, time.Now().Add(-time.Second), errors.New("offline"))

	if got := sample(t, reg, "crewsync_job_success_total", "job", JobOutboxFlush).GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected flush success=1, got %v", got)
	}
	if got := sample(t, reg, "crewsync_job_failure_total", "job", JobNotificationsPoll).GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected poll failure=1, got %v", got)
	}
	if find(t, reg, "crewsync_job_success_total", "job", JobNotificationsPoll) != nil {
		t.Fatal("failed job must not count as success")
	}

	sum := sample(t, reg, "crewsync_job_duration_seconds", "job", JobOutboxFlush).GetHistogram().GetSampleSum()
	if sum < 0.25 {
		t.Fatalf("expected flush duration sum >= 0.25s, got %v", sum)
	}
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncEnqueued("RDO")
	m.IncEnqueued("RDO")
	m.IncDeduplicated("RDO")
	m.IncSend("OS", ResultConflict)
	m.SetPending(3)
	m.ObserveFlush(10 * time.Millisecond)

	counters := []struct {
		name, label, value string
		want               float64
	}{
		{"crewsync_outbox_enqueued_total", "kind", "RDO", 2},
		{"crewsync_outbox_deduplicated_total", "kind", "RDO", 1},
		{"crewsync_outbox_sends_total", "result", ResultConflict, 1},
	}
	for _, tc := range counters {
		if got := sample(t, reg, tc.name, tc.label, tc.value).GetCounter().GetValue(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
	if got := sample(t, reg, "crewsync_outbox_pending_items", "", "").GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected pending gauge 3, got %v", got)
	}
	if got := sample(t, reg, "crewsync_outbox_flush_duration_seconds", "", "").GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("expected one flush observation, got %d", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var jobs *JobMetrics
	jobs.IncSuccess("x")
	jobs.Track("x", time.Now(), nil)
	var outbox *OutboxMetrics
	outbox.IncSend("RDO", ResultSent)
	outbox.SetPending(1)
	NewOutboxMetrics(nil).ObserveFlush(time.Second)
	NewJobMetrics(nil).IncFailure("x")
}

// find returns the sample of family name carrying label=value; an empty
// label matches the first sample.
func find(t *testing.T, reg *prometheus.Registry, name, label, value string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label == "" || hasLabel(metric.GetLabel(), label, value) {
				return metric
			}
		}
	}
	return nil
}

func sample(t *testing.T, reg *prometheus.Registry, name, label, value string) *dto.Metric {
	t.Helper()
	metric := find(t, reg, name, label, value)
	if metric == nil {
		t.Fatalf("metric %s{%s=%q} not found", name, label, value)
	}
	return metric
}

func hasLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
