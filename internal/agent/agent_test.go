package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/crewsync/internal/outbox"
	"github.com/angelmondragon/crewsync/internal/storage"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/enums"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

type remoteRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *remoteRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.paths = append(r.paths, req.Method+" "+req.URL.Path)
		r.mu.Unlock()
		switch req.URL.Path {
		case "/api/notifications":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusCreated)
		}
	})
}

func (r *remoteRecorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: config.AppEnvDev},
		Store:  config.StoreConfig{Driver: config.StoreDriverMemory, QueueKey: "outbox_queue"},
		Remote: config.RemoteConfig{BaseURL: baseURL, Timeout: 2 * time.Second, RateLimitBurst: 1},
		Outbox: config.OutboxConfig{
			StaleAfter:    time.Minute,
			FlushInterval: time.Hour,
			LockTTL:       time.Minute,
		},
		Connectivity: config.ConnectivityConfig{ProbeInterval: time.Hour, ProbeTimeout: time.Second},
		Notifications: config.NotificationsConfig{
			PollInterval:  time.Hour,
			ToastDuration: time.Second,
			EmployeeIDs:   []string{"7"},
		},
	}
}

func TestNewWiresMemoryBackend(t *testing.T) {
	rec := &remoteRecorder{}
	server := httptest.NewServer(rec.handler())
	defer server.Close()

	a, err := New(context.Background(), testConfig(server.URL), logger.Nop())
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	defer func() { _ = a.Close() }()

	if _, ok := a.Backend.Store.(*storage.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", a.Backend.Store)
	}
	if tracked := a.Notifications.Tracked(); len(tracked) != 1 || tracked[0] != "7" {
		t.Fatalf("unexpected tracked employees %v", tracked)
	}
	if a.FlushLock == nil {
		t.Fatalf("expected a flush lock")
	}
}

func TestFlushDeliversThroughDispatcher(t *testing.T) {
	rec := &remoteRecorder{}
	server := httptest.NewServer(rec.handler())
	defer server.Close()

	a, err := New(context.Background(), testConfig(server.URL), logger.Nop())
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	payload, _ := json.Marshal(map[string]any{"note": "ok"})
	if _, err := a.Engine.Enqueue(ctx, outbox.EnqueueParams{
		Kind:       enums.OutboxKindOS,
		EmployeeID: "7",
		Payload:    payload,
		ClientID:   "client-1",
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if !a.Watcher.FlushNow(ctx) {
		t.Fatalf("expected flush to run")
	}
	if !rec.seen("POST /api/os") {
		t.Fatalf("expected POST /api/os, saw %v", rec.paths)
	}
	if pending := a.Engine.Pending(ctx); pending != 0 {
		t.Fatalf("expected empty queue, got %d", pending)
	}
}

func TestHandlerServesHealth(t *testing.T) {
	server := httptest.NewServer((&remoteRecorder{}).handler())
	defer server.Close()

	a, err := New(context.Background(), testConfig(server.URL), logger.Nop())
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	defer func() { _ = a.Close() }()

	resp := httptest.NewRecorder()
	a.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	rec := &remoteRecorder{}
	server := httptest.NewServer(rec.handler())
	defer server.Close()

	a, err := New(context.Background(), testConfig(server.URL), logger.Nop())
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, "127.0.0.1:0") }()

	deadline := time.Now().Add(2 * time.Second)
	for !rec.seen("GET /api/notifications") {
		if time.Now().After(deadline) {
			t.Fatalf("poller never reached the remote feed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}
}
