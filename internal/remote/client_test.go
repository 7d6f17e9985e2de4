package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/crewsync/internal/outbox"
	"github.com/angelmondragon/crewsync/pkg/config"
	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	client, err := NewClient("http://api.test", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, errBaseURLRequired) {
		t.Fatalf("expected missing base url error, got %v", err)
	}
	if _, err := NewClient("not a url"); err == nil {
		t.Fatalf("expected invalid url error")
	}
	client, err := NewClientFromConfig(config.RemoteConfig{BaseURL: "http://api.test/", Token: "tok"})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if client.baseURL != "http://api.test" || client.token != "tok" {
		t.Fatalf("unexpected client %+v", client)
	}
}

func TestDispatcherRoutesEachKind(t *testing.T) {
	cases := map[enums.OutboxKind]string{
		enums.OutboxKindRDO: "/api/rdo",
		enums.OutboxKindOS:  "/api/os",
		enums.OutboxKindFIN: "/api/finance",
	}
	for kind, wantPath := range cases {
		var captured *http.Request
		var body []byte
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			captured = req
			body, _ = io.ReadAll(req.Body)
			return jsonResponse(http.StatusCreated, `{"id":1}`), nil
		}, WithToken("secret"))

		item := outbox.Item{ID: "item-1", Kind: kind, ClientID: "client-1", Payload: json.RawMessage(`{"clientId":"client-1"}`)}
		if err := NewDispatcher(client).Send(context.Background(), item); err != nil {
			t.Fatalf("%s: send: %v", kind, err)
		}
		if captured.Method != http.MethodPost || captured.URL.Path != wantPath {
			t.Fatalf("%s: unexpected request %s %s", kind, captured.Method, captured.URL.Path)
		}
		if captured.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("%s: missing bearer token", kind)
		}
		if captured.Header.Get(idempotencyHeader) != "client-1" {
			t.Fatalf("%s: missing idempotency key", kind)
		}
		if captured.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("%s: missing content type", kind)
		}
		if string(body) != `{"clientId":"client-1"}` {
			t.Fatalf("%s: unexpected body %s", kind, body)
		}
	}
}

func TestDispatcherRejectsUnknownKind(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	err := NewDispatcher(client).Send(context.Background(), outbox.Item{Kind: enums.OutboxKind("XYZ")})
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestConflictResponseIsClassifiedAsConflict(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusConflict, `{"error":{"code":"CONFLICT","message":"already exists"}}`), nil
	})
	err := NewDispatcher(client).Send(context.Background(), outbox.Item{Kind: enums.OutboxKindOS})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Message != "already exists" {
		t.Fatalf("unexpected message %q", statusErr.Message)
	}
	if !outbox.IsConflict(err) {
		t.Fatalf("409 should be classified as conflict")
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, "upstream down"), nil
	})
	err := NewDispatcher(client).Send(context.Background(), outbox.Item{Kind: enums.OutboxKindRDO})
	if err == nil || outbox.IsConflict(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Fatalf("expected body text in error, got %v", err)
	}
}

func TestNetworkErrorIsDependencyError(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	err := NewDispatcher(client).Send(context.Background(), outbox.Item{Kind: enums.OutboxKindRDO})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestErrorMessageShapes(t *testing.T) {
	cases := map[string]string{
		`{"message":"top"}`:              "top",
		`{"error":"flat"}`:               "flat",
		`{"error":{"message":"nested"}}`: "nested",
		"plain text":                     "plain text",
		"":                               "",
	}
	for raw, want := range cases {
		if got := errorMessage([]byte(raw)); got != want {
			t.Fatalf("errorMessage(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNotificationFeedListAcceptsBothShapes(t *testing.T) {
	bodies := []string{
		`[{"id":5,"title":"a","createdAt":"2026-03-02T08:00:00Z"}]`,
		`{"data":[{"id":"5","title":"a","createdAt":"2026-03-02T08:00:00Z"}]}`,
	}
	for _, body := range bodies {
		var captured *http.Request
		client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
			captured = req
			return jsonResponse(http.StatusOK, body), nil
		})
		items, err := NewNotificationFeed(client).List(context.Background(), "emp-1", "2026-03-01T00:00:00Z")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if captured.URL.Path != notificationsPath {
			t.Fatalf("unexpected path %s", captured.URL.Path)
		}
		if captured.URL.Query().Get("employeeId") != "emp-1" || captured.URL.Query().Get("since") != "2026-03-01T00:00:00Z" {
			t.Fatalf("unexpected query %s", captured.URL.RawQuery)
		}
		if len(items) != 1 || items[0].ID.Key() != "5" {
			t.Fatalf("unexpected items %+v", items)
		}
	}
}

func TestNotificationFeedListOmitsEmptySince(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Has("since") {
			t.Fatalf("since should be omitted")
		}
		return jsonResponse(http.StatusOK, `[]`), nil
	})
	items, err := NewNotificationFeed(client).List(context.Background(), "emp-1", "")
	if err != nil || len(items) != 0 {
		t.Fatalf("unexpected result %v %v", items, err)
	}
}

func TestNotificationFeedMarkRead(t *testing.T) {
	var payload struct {
		EmployeeID string  `json:"employeeId"`
		IDs        []int64 `json:"ids"`
	}
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != notificationsReadPath {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusNoContent, ""), nil
	})
	if err := NewNotificationFeed(client).MarkRead(context.Background(), "emp-1", []int64{5, 9}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if payload.EmployeeID != "emp-1" || len(payload.IDs) != 2 || payload.IDs[1] != 9 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestRateLimitSpacesRequests(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return jsonResponse(http.StatusOK, `{}`), nil
	}, WithRateLimit(20, 1))

	for i := 0; i < 3; i++ {
		if err := client.do(context.Background(), request{method: http.MethodGet, path: "/ping"}, nil); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if elapsed := stamps[2].Sub(stamps[0]); elapsed < 80*time.Millisecond {
		t.Fatalf("expected limiter to space requests, elapsed %s", elapsed)
	}
}

func TestRateLimitHonorsCanceledContext(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}, WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())
	_ = client.do(ctx, request{method: http.MethodGet, path: "/ping"}, nil)
	cancel()
	if err := client.do(ctx, request{method: http.MethodGet, path: "/ping"}, nil); err == nil {
		t.Fatalf("expected limiter wait to fail on canceled context")
	}
}

func TestProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()
	if err := client.Probe(ctx, ""); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}
	if err := client.Probe(ctx, server.URL+"/missing"); err != nil {
		t.Fatalf("404 still means reachable, got %v", err)
	}
	status.Store(http.StatusServiceUnavailable)
	if err := client.Probe(ctx, ""); err == nil {
		t.Fatalf("expected 503 to count as unreachable")
	}
	server.Close()
	if err := client.Probe(ctx, ""); err == nil {
		t.Fatalf("expected closed server to be unreachable")
	}
}
