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
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// DefaultToastDuration is how long a toast stays visible.
const DefaultToastDuration = 3500 * time.Millisecond

// Feed is the remote notification source for one employee at a time.
// since is an RFC 3339 instant; empty means everything.
type Feed interface {
	List(ctx context.Context, employeeID, since string) ([]Item, error)
	MarkRead(ctx context.Context, employeeID string, ids []int64) error
}

// Timer is the cancellable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Implementations must not call f synchronously.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// MergerParams wires a merger. EmployeeID, Feed, Store and Logger are required.
type MergerParams struct {
	EmployeeID    string
	Feed          Feed
	Store         storage.DocumentStore
	Logger        *logger.Logger
	Clock         clock.Clock
	ToastDuration time.Duration
	AfterFunc     AfterFunc
}

// PollResult summarizes one poll.
type PollResult struct {
	Fetched       int    `json:"fetched"`
	New           int    `json:"new"`
	HighWaterMark string `json:"highWaterMark,omitempty"`
}

// Merger keeps one employee's merged notification list in sync with the feed.
type Merger struct {
	employeeID    string
	feed          Feed
	repo          repository
	logg          *logger.Logger
	clock         clock.Clock
	toastDuration time.Duration
	afterFunc     AfterFunc

	mu         sync.Mutex
	loaded     bool
	closed     bool
	items      []Item
	hwm        string
	toast      *Toast
	toastTimer Timer
	toastSeq   uint64
}

func NewMerger(params MergerParams) (*Merger, error) {
	employeeID := strings.TrimSpace(params.EmployeeID)
	if employeeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id required")
	}
	if params.Feed == nil {
		return nil, errors.New("notification feed is required")
	}
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
	toastDuration := params.ToastDuration
	if toastDuration <= 0 {
		toastDuration = DefaultToastDuration
	}
	afterFunc := params.AfterFunc
	if afterFunc == nil {
		afterFunc = systemAfterFunc
	}
	return &Merger{
		employeeID:    employeeID,
		feed:          params.Feed,
		repo:          newRepository(params.Store),
		logg:          params.Logger,
		clock:         clk,
		toastDuration: toastDuration,
		afterFunc:     afterFunc,
	}, nil
}

// EmployeeID returns the employee this merger serves.
func (m *Merger) EmployeeID() string {
	return m.employeeID
}

// Poll fetches everything newer than the high-water mark and merges it into
// the local list. On failure local state is left untouched.
func (m *Merger) Poll(ctx context.Context) (PollResult, error) {
	ctx = m.logg.WithEmployeeID(ctx, m.employeeID)

	m.mu.Lock()
	m.ensureLoaded(ctx)
	since := m.hwm
	m.mu.Unlock()

	batch, err := m.feed.List(ctx, m.employeeID, since)
	if err != nil {
		m.logg.Error(m.logg.WithField(ctx, "since", since), "notification poll failed", err)
		return PollResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensureLoaded(ctx)
	fresh, newest := m.merge(batch)
	m.persist(ctx)
	if newest != nil {
		m.showToast(*newest)
	}
	if fresh > 0 {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"fetched":         len(batch),
			"new":             fresh,
			"high_water_mark": m.hwm,
		}), "notifications merged")
	}
	return PollResult{Fetched: len(batch), New: fresh, HighWaterMark: m.hwm}, nil
}

// merge folds batch into m.items. Later entries overwrite earlier ones with
// the same normalized id. It returns how many ids were not known before and
// the most recent of those.
func (m *Merger) merge(batch []Item) (int, *Item) {
	index := make(map[string]int, len(m.items)+len(batch))
	for i, item := range m.items {
		index[item.ID.Key()] = i
	}

	prev, _ := time.Parse(time.RFC3339Nano, m.hwm)
	mark := prev
	fresh := 0
	var newest *Item
	for _, incoming := range batch {
		incoming = incoming.clone()
		if incoming.EmployeeID == "" {
			incoming.EmployeeID = m.employeeID
		}
		if incoming.CreatedAt.After(mark) {
			mark = incoming.CreatedAt
		}
		key := incoming.ID.Key()
		if at, ok := index[key]; ok {
			m.items[at] = incoming
			if newest != nil && newest.ID.Key() == key {
				latest := incoming
				newest = &latest
			}
			continue
		}
		index[key] = len(m.items)
		m.items = append(m.items, incoming)
		fresh++
		if newest == nil || incoming.CreatedAt.After(newest.CreatedAt) {
			latest := incoming
			newest = &latest
		}
	}

	if mark.After(prev) {
		m.hwm = mark.UTC().Format(time.RFC3339Nano)
	}
	slices.SortStableFunc(m.items, func(a, b Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return fresh, newest
}

// MarkRead marks the numeric ids among ids as read, remotely first. Non-numeric
// ids are ignored. It returns how many local items changed.
func (m *Merger) MarkRead(ctx context.Context, ids []ID) (int, error) {
	ctx = m.logg.WithEmployeeID(ctx, m.employeeID)

	numeric := make([]int64, 0, len(ids))
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		n, ok := id.Int64()
		if !ok {
			continue
		}
		if _, dup := wanted[n]; dup {
			continue
		}
		wanted[n] = struct{}{}
		numeric = append(numeric, n)
	}
	if len(numeric) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	m.ensureLoaded(ctx)
	m.mu.Unlock()

	if err := m.feed.MarkRead(ctx, m.employeeID, numeric); err != nil {
		m.logg.Error(ctx, "mark notifications read failed", err)
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	updated := 0
	for i := range m.items {
		n, ok := m.items[i].ID.Int64()
		if !ok {
			continue
		}
		if _, hit := wanted[n]; !hit || m.items[i].ReadAt != nil {
			continue
		}
		readAt := now
		m.items[i].ReadAt = &readAt
		updated++
	}
	if updated > 0 {
		m.persist(ctx)
	}
	return updated, nil
}

// Items returns a copy of the merged list, newest first.
func (m *Merger) Items(ctx context.Context) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)
	return cloneItems(m.items)
}

// UnreadCount counts items with no readAt.
func (m *Merger) UnreadCount(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLoaded(ctx)
	count := 0
	for _, item := range m.items {
		if item.Unread() {
			count++
		}
	}
	return count
}

// HighWaterMark returns the newest createdAt seen, RFC 3339 formatted.
func (m *Merger) HighWaterMark() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hwm
}

// Toast returns the visible toast, if any.
func (m *Merger) Toast() (Toast, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.toast == nil {
		return Toast{}, false
	}
	return *m.toast, true
}

// Close cancels the pending toast timer. Polls still work afterwards but no
// longer schedule toasts.
func (m *Merger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopToastLocked()
	m.toast = nil
}

func (m *Merger) showToast(item Item) {
	if m.closed {
		return
	}
	m.stopToastLocked()
	now := m.clock.Now()
	m.toastSeq++
	seq := m.toastSeq
	m.toast = &Toast{
		NotificationID: item.ID,
		Title:          item.Title,
		ShownAt:        now,
		ExpiresAt:      now.Add(m.toastDuration),
	}
	m.toastTimer = m.afterFunc(m.toastDuration, func() { m.clearToast(seq) })
}

func (m *Merger) clearToast(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.toastSeq {
		return
	}
	m.toast = nil
	m.toastTimer = nil
}

func (m *Merger) stopToastLocked() {
	if m.toastTimer != nil {
		m.toastTimer.Stop()
		m.toastTimer = nil
	}
}

func (m *Merger) ensureLoaded(ctx context.Context) {
	if m.loaded {
		return
	}
	st, found, err := m.repo.Load(ctx, m.employeeID)
	if err != nil {
		m.logg.Error(ctx, "load notification state failed", err)
		return
	}
	m.loaded = true
	if !found {
		return
	}
	m.items = st.Items
	m.hwm = st.HighWaterMark
}

// persist is a no-op until the stored state has been read once, so a failed
// first read never overwrites it.
func (m *Merger) persist(ctx context.Context) {
	if !m.loaded {
		m.logg.Warn(ctx, "notification state not loaded; skipping save")
		return
	}
	err := m.repo.Save(context.WithoutCancel(ctx), m.employeeID, state{
		Items:         cloneItems(m.items),
		HighWaterMark: m.hwm,
	})
	if err != nil {
		m.logg.Error(ctx, "save notification state failed", err)
	}
}
