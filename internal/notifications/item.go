package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const stringIDPrefix = "s:"

// ID is a feed identifier. The feed is not consistent about ids: some arrive
// as JSON numbers, some as digit strings, some as opaque strings. Numeric
// forms collapse to the same key.
type ID struct {
	num     int64
	str     string
	numeric bool
}

// NumericID builds an integer id.
func NumericID(n int64) ID {
	return ID{num: n, numeric: true}
}

// ParseID normalizes a raw textual id.
func ParseID(raw string) ID {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return NumericID(n)
	}
	return ID{str: raw}
}

// Int64 reports the integer value when the id is numeric.
func (id ID) Int64() (int64, bool) {
	return id.num, id.numeric
}

// Key is the merge key: the decimal form for numeric ids, a prefixed form for
// everything else so "s:12" never collides with 12.
func (id ID) Key() string {
	if id.numeric {
		return strconv.FormatInt(id.num, 10)
	}
	return stringIDPrefix + id.str
}

func (id ID) String() string {
	if id.numeric {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(strconv.FormatInt(id.num, 10)), nil
	}
	return json.Marshal(id.str)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("notification id is required")
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*id = ParseID(raw)
		return nil
	}
	if n, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		*id = NumericID(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("invalid notification id %s", trimmed)
	}
	// 5.0 and 1e1 are integers written oddly; anything else keeps its text.
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		*id = NumericID(int64(f))
		return nil
	}
	*id = ID{str: string(trimmed)}
	return nil
}

// Item is a notification as held locally.
type Item struct {
	ID         ID         `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt"`
}

// Unread reports whether the item was never marked read.
func (i Item) Unread() bool {
	return i.ReadAt == nil
}

func (i Item) clone() Item {
	out := i
	if i.ReadAt != nil {
		readAt := *i.ReadAt
		out.ReadAt = &readAt
	}
	return out
}

func cloneItems(in []Item) []Item {
	out := make([]Item, len(in))
	for i := range in {
		out[i] = in[i].clone()
	}
	return out
}

// Toast is the transient banner naming the newest unseen notification.
type Toast struct {
	NotificationID ID        `json:"notificationId"`
	Title          string    `json:"title"`
	ShownAt        time.Time `json:"shownAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}
