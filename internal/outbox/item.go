package outbox

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/crewsync/pkg/enums"
)

// Item is one pending submission. The queue document is a JSON array of
// these, most recent first.
type Item struct {
	ID             string             `json:"id"`
	Kind           enums.OutboxKind   `json:"kind"`
	EmployeeID     string             `json:"employeeId"`
	Payload        json.RawMessage    `json:"payload"`
	ClientID       string             `json:"clientId"`
	ClientFilledAt time.Time          `json:"clientFilledAt"`
	CreatedAt      time.Time          `json:"createdAt"`
	Status         enums.OutboxStatus `json:"status"`
	SendingAt      *time.Time         `json:"sendingAt"`
	Attempts       int                `json:"attempts"`
	LastError      string             `json:"lastError,omitempty"`
	NextRetryAt    *time.Time         `json:"nextRetryAt"`
}

// Eligible reports whether the item may be sent at now. SENDING items are
// skipped until their claim is older than staleAfter.
func (i Item) Eligible(now time.Time, staleAfter time.Duration) bool {
	if i.Status == enums.OutboxStatusSending {
		if i.SendingAt != nil && now.Sub(*i.SendingAt) <= staleAfter {
			return false
		}
	}
	return i.NextRetryAt == nil || !i.NextRetryAt.After(now)
}

func (i Item) matches(employeeID string, kind enums.OutboxKind, clientID string) bool {
	return i.EmployeeID == employeeID && i.Kind == kind && i.ClientID == clientID
}

func (i Item) clone() Item {
	out := i
	if i.Payload != nil {
		out.Payload = append(json.RawMessage(nil), i.Payload...)
	}
	out.SendingAt = cloneTime(i.SendingAt)
	out.NextRetryAt = cloneTime(i.NextRetryAt)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for idx, item := range items {
		out[idx] = item.clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func indexOf(items []Item, id string) int {
	for idx := range items {
		if items[idx].ID == id {
			return idx
		}
	}
	return -1
}
