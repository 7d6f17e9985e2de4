package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/crewsync/internal/storage"
	"github.com/angelmondragon/crewsync/pkg/clock"
	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
	"github.com/angelmondragon/crewsync/pkg/metrics"
	"github.com/google/uuid"
)

const (
	DefaultQueueKey   = "outbox_queue"
	DefaultStaleAfter = 2 * time.Minute
)

// EngineParams wires the engine's dependencies. Store and Logger are required.
type EngineParams struct {
	Store      storage.DocumentStore
	Logger     *logger.Logger
	Clock      clock.Clock
	Metrics    *metrics.OutboxMetrics
	QueueKey   string
	StaleAfter time.Duration
	IsConflict ConflictClassifier
	NewID      func() string
}

// EnqueueParams describes a new submission.
type EnqueueParams struct {
	Kind           enums.OutboxKind
	EmployeeID     string
	Payload        json.RawMessage
	ClientFilledAt time.Time
	ClientID       string
}

// Engine owns the persisted outbox queue. Every read-modify-write of the
// queue document happens under mu; transport calls run outside it.
type Engine struct {
	store      storage.DocumentStore
	logg       *logger.Logger
	clock      clock.Clock
	metrics    *metrics.OutboxMetrics
	queueKey   string
	staleAfter time.Duration
	isConflict ConflictClassifier
	newID      func() string

	mu     sync.Mutex
	last   []Item
	primed bool
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("document store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System{}
	}
	key := strings.TrimSpace(params.QueueKey)
	if key == "" {
		key = DefaultQueueKey
	}
	stale := params.StaleAfter
	if stale <= 0 {
		stale = DefaultStaleAfter
	}
	classifier := params.IsConflict
	if classifier == nil {
		classifier = IsConflict
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Engine{
		store:      params.Store,
		logg:       params.Logger,
		clock:      clk,
		metrics:    params.Metrics,
		queueKey:   key,
		staleAfter: stale,
		isConflict: classifier,
		newID:      newID,
	}, nil
}

// Enqueue adds a submission or returns the existing item for the same
// (employeeId, kind, clientId).
func (e *Engine) Enqueue(ctx context.Context, params EnqueueParams) (Item, error) {
	if !params.Kind.IsValid() {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported outbox kind %q", params.Kind)).
			WithDetails(map[string]string{"kind": "must be one of RDO, OS, FIN"})
	}
	employeeID := strings.TrimSpace(params.EmployeeID)
	if employeeID == "" {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required").
			WithDetails(map[string]string{"employeeId": "is required"})
	}
	fields, err := decodePayloadObject(params.Payload)
	if err != nil {
		return Item{}, err
	}

	now := e.clock.Now()
	clientID, err := resolveClientID(params.ClientID, fields)
	if err != nil {
		return Item{}, err
	}
	filledAt := params.ClientFilledAt
	if filledAt.IsZero() {
		filledAt = now
	}
	filledAt = filledAt.UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	if !ok {
		return Item{}, pkgerrors.New(pkgerrors.CodeStorage, "outbox queue is unreadable; submission not accepted")
	}
	for _, existing := range items {
		if existing.matches(employeeID, params.Kind, clientID) {
			e.metrics.IncDeduplicated(string(params.Kind))
			e.logg.Debug(e.itemContext(ctx, existing), "outbox enqueue deduplicated")
			return existing.clone(), nil
		}
	}

	payload, err := embedClientFields(fields, clientID, filledAt)
	if err != nil {
		return Item{}, err
	}
	nextRetry := now
	item := Item{
		ID:             e.newID(),
		Kind:           params.Kind,
		EmployeeID:     employeeID,
		Payload:        payload,
		ClientID:       clientID,
		ClientFilledAt: filledAt,
		CreatedAt:      now,
		Status:         enums.OutboxStatusPending,
		Attempts:       0,
		NextRetryAt:    &nextRetry,
	}

	items = append([]Item{item}, items...)
	e.save(ctx, items)
	e.metrics.IncEnqueued(string(item.Kind))
	e.logg.Info(e.itemContext(ctx, item), "outbox item enqueued")
	return item.clone(), nil
}

// Flush makes one pass over the queue in stored order, sending every eligible
// item, and returns what is left afterwards.
func (e *Engine) Flush(ctx context.Context, transport Transport) []Item {
	started := time.Now()
	defer func() { e.metrics.ObserveFlush(time.Since(started)) }()

	e.mu.Lock()
	snapshot, ok := e.load(ctx)
	e.mu.Unlock()
	if !ok {
		return []Item{}
	}

	for _, candidate := range snapshot {
		if ctx.Err() != nil {
			break
		}
		claimed, ok := e.claim(ctx, candidate.ID)
		if !ok {
			continue
		}
		sendErr := transport.Send(ctx, claimed)
		e.settle(ctx, claimed, sendErr)
	}

	return e.List(context.WithoutCancel(ctx), "")
}

func (e *Engine) claim(ctx context.Context, id string) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	idx := indexOf(items, id)
	if !ok || idx < 0 {
		return Item{}, false
	}
	now := e.clock.Now()
	if !items[idx].Eligible(now, e.staleAfter) {
		return Item{}, false
	}
	items[idx].Status = enums.OutboxStatusSending
	items[idx].SendingAt = &now
	e.save(ctx, items)
	return items[idx].clone(), true
}

func (e *Engine) settle(ctx context.Context, claimed Item, sendErr error) {
	interrupted := ctx.Err() != nil && errors.Is(sendErr, ctx.Err())
	// the outcome is persisted even when the flush itself is being canceled
	ctx = context.WithoutCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	if !ok {
		return
	}
	idx := indexOf(items, claimed.ID)
	itemCtx := e.itemContext(ctx, claimed)
	kind := string(claimed.Kind)

	switch {
	case sendErr == nil:
		e.metrics.IncSend(kind, metrics.ResultSent)
		e.logg.Info(itemCtx, "outbox item delivered")
		if idx >= 0 {
			e.save(ctx, removeAt(items, idx))
		}
		return

	case e.isConflict(sendErr):
		e.metrics.IncSend(kind, metrics.ResultConflict)
		e.logg.Info(e.logg.WithField(itemCtx, "reason", sendErr.Error()), "outbox item already applied remotely")
		if idx >= 0 {
			e.save(ctx, removeAt(items, idx))
		}
		return
	}

	if idx < 0 {
		// removed while in flight
		return
	}

	if interrupted {
		items[idx].Status = enums.OutboxStatusPending
		items[idx].SendingAt = nil
		e.save(ctx, items)
		e.logg.Warn(itemCtx, "outbox send interrupted by shutdown")
		return
	}

	now := e.clock.Now()
	item := &items[idx]
	item.Attempts++
	delay := RetryDelay(item.Attempts)
	next := now.Add(delay)
	item.Status = enums.OutboxStatusFailed
	item.SendingAt = nil
	item.NextRetryAt = &next
	item.LastError = sendErr.Error()
	e.save(ctx, items)

	e.metrics.IncSend(kind, metrics.ResultFailed)
	e.logg.Warn(e.logg.WithFields(itemCtx, map[string]any{
		"attempts":      item.Attempts,
		"retry_in":      delay.String(),
		"next_retry_at": next.Format(time.RFC3339),
		"error":         item.LastError,
	}), "outbox send failed; rescheduled")
}

// Retry makes an item immediately eligible regardless of its backoff.
func (e *Engine) Retry(ctx context.Context, id string) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	idx := indexOf(items, id)
	if !ok || idx < 0 {
		return Item{}, false
	}
	now := e.clock.Now()
	items[idx].Status = enums.OutboxStatusPending
	items[idx].SendingAt = nil
	items[idx].LastError = ""
	items[idx].NextRetryAt = &now
	e.save(ctx, items)
	e.logg.Info(e.itemContext(ctx, items[idx]), "outbox item retry requested")
	return items[idx].clone(), true
}

// Remove deletes an item unconditionally.
func (e *Engine) Remove(ctx context.Context, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	idx := indexOf(items, id)
	if !ok || idx < 0 {
		return false
	}
	removed := items[idx]
	e.save(ctx, removeAt(items, idx))
	e.logg.Info(e.itemContext(ctx, removed), "outbox item removed")
	return true
}

// Get returns a single item by id.
func (e *Engine) Get(ctx context.Context, id string) (Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, ok := e.load(ctx)
	idx := indexOf(items, id)
	if !ok || idx < 0 {
		return Item{}, false
	}
	return items[idx].clone(), true
}

// List returns the queue in stored order, optionally filtered by employee.
func (e *Engine) List(ctx context.Context, employeeID string) []Item {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, _ := e.load(ctx)
	employeeID = strings.TrimSpace(employeeID)
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if employeeID != "" && item.EmployeeID != employeeID {
			continue
		}
		out = append(out, item.clone())
	}
	return out
}

// Pending counts every item still in the queue.
func (e *Engine) Pending(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	items, _ := e.load(ctx)
	return len(items)
}

// load must be called with mu held. A failed read falls back to the last
// snapshot this engine saw. Before any read has succeeded there is no
// snapshot and ok is false; callers must not write in that case.
func (e *Engine) load(ctx context.Context) (items []Item, ok bool) {
	found, err := storage.LoadJSON(ctx, e.store, e.queueKey, &items)
	if err != nil {
		if !e.primed {
			e.logg.Error(ctx, "outbox queue read failed; no snapshot loaded yet", err)
			return nil, false
		}
		e.logg.Error(ctx, "outbox queue read failed; using last known snapshot", err)
		return cloneItems(e.last), true
	}
	if !found {
		items = nil
	}
	e.primed = true
	e.last = cloneItems(items)
	return items, true
}

// save must be called with mu held. Write failures are logged, never returned.
func (e *Engine) save(ctx context.Context, items []Item) {
	if items == nil {
		items = []Item{}
	}
	e.last = cloneItems(items)
	e.metrics.SetPending(len(items))
	if err := storage.SaveJSON(ctx, e.store, e.queueKey, items); err != nil {
		e.logg.Error(ctx, "outbox queue write failed", err)
	}
}

func (e *Engine) itemContext(ctx context.Context, item Item) context.Context {
	ctx = e.logg.WithItemID(ctx, item.ID)
	ctx = e.logg.WithEmployeeID(ctx, item.EmployeeID)
	return e.logg.WithFields(ctx, map[string]any{
		"kind":      string(item.Kind),
		"client_id": item.ClientID,
	})
}

func removeAt(items []Item, idx int) []Item {
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

func decodePayloadObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return map[string]json.RawMessage{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil || fields == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload must be a JSON object").
			WithDetails(map[string]string{"payload": "must be a JSON object"})
	}
	return fields, nil
}

// resolveClientID prefers the explicit id, then the one already embedded in
// the payload, and only then mints a new one. The two must agree when both
// are present.
func resolveClientID(explicit string, fields map[string]json.RawMessage) (string, error) {
	explicit = strings.TrimSpace(explicit)
	var embedded string
	if raw, ok := fields["clientId"]; ok && strings.TrimSpace(string(raw)) != "null" {
		if err := json.Unmarshal(raw, &embedded); err != nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "payload clientId must be a string").
				WithDetails(map[string]string{"payload.clientId": "must be a string"})
		}
		embedded = strings.TrimSpace(embedded)
	}
	switch {
	case explicit != "" && embedded != "" && explicit != embedded:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "clientId does not match the payload clientId").
			WithDetails(map[string]string{"clientId": "must match payload.clientId"})
	case explicit != "":
		return explicit, nil
	case embedded != "":
		return embedded, nil
	}
	return uuid.NewString(), nil
}

func embedClientFields(fields map[string]json.RawMessage, clientID string, filledAt time.Time) (json.RawMessage, error) {
	idJSON, err := json.Marshal(clientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode client id")
	}
	filledJSON, err := json.Marshal(filledAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode client filled at")
	}
	fields["clientId"] = idJSON
	fields["clientFilledAt"] = filledJSON
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payload")
	}
	return body, nil
}
