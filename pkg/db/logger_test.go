package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func bufferedQueryLogger(slow time.Duration) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func TestTraceLogsSlowQueryAsWarn(t *testing.T) {
	q, buf := bufferedQueryLogger(time.Millisecond)
	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "slow query") {
		t.Fatalf("expected slow query warning, got %s", out)
	}
	if !strings.Contains(out, `"sql":"SELECT 1"`) {
		t.Fatalf("expected sql field, got %s", out)
	}
}

func TestTraceSkipsNotFoundAndFastQueries(t *testing.T) {
	q, buf := bufferedQueryLogger(time.Hour)
	q.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM sync_documents", 0
	}, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("not found at warn level should stay quiet, got %s", buf.String())
	}

	q.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT", 0
	}, errors.New("disk full"))
	if !strings.Contains(buf.String(), "query failed") {
		t.Fatalf("expected failure line, got %s", buf.String())
	}
}

func TestLogModeSilentDropsTrace(t *testing.T) {
	q, buf := bufferedQueryLogger(time.Millisecond)
	silent := q.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
	if q.level != gormlogger.Warn {
		t.Fatal("LogMode must not mutate the receiver")
	}
}

func TestWithBusyTimeout(t *testing.T) {
	cases := map[string]string{
		"crewsync.db":                   "crewsync.db?_busy_timeout=5000",
		"file:x?mode=memory":            "file:x?mode=memory&_busy_timeout=5000",
		"crewsync.db?_busy_timeout=100": "crewsync.db?_busy_timeout=100",
	}
	for in, want := range cases {
		if got := withBusyTimeout(in); got != want {
			t.Fatalf("withBusyTimeout(%q) = %q, want %q", in, got, want)
		}
	}
}
