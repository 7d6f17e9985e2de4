package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/crewsync/internal/notifications"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

const (
	notificationsPath     = "/api/notifications"
	notificationsReadPath = "/api/notifications/read"
)

// NotificationFeed is the REST-backed notifications.Feed.
type NotificationFeed struct {
	client *Client
}

func NewNotificationFeed(client *Client) *NotificationFeed {
	return &NotificationFeed{client: client}
}

// List fetches notifications for employeeID created after since. The API
// answers either with a bare array or with a {"data": [...]} envelope.
func (f *NotificationFeed) List(ctx context.Context, employeeID, since string) ([]notifications.Item, error) {
	query := url.Values{}
	query.Set("employeeId", employeeID)
	if strings.TrimSpace(since) != "" {
		query.Set("since", since)
	}

	var raw json.RawMessage
	if err := f.client.do(ctx, request{
		method: http.MethodGet,
		path:   notificationsPath,
		query:  query,
	}, &raw); err != nil {
		return nil, err
	}
	return decodeNotificationList(raw)
}

func decodeNotificationList(raw json.RawMessage) ([]notifications.Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var items []notifications.Item
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode notifications")
		}
		return items, nil
	}
	var envelope struct {
		Data []notifications.Item `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode notifications envelope")
	}
	return envelope.Data, nil
}

// MarkRead acknowledges ids for employeeID.
func (f *NotificationFeed) MarkRead(ctx context.Context, employeeID string, ids []int64) error {
	return f.client.do(ctx, request{
		method: http.MethodPost,
		path:   notificationsReadPath,
		body: struct {
			EmployeeID string  `json:"employeeId"`
			IDs        []int64 `json:"ids"`
		}{EmployeeID: employeeID, IDs: ids},
	}, nil)
}

var _ notifications.Feed = (*NotificationFeed)(nil)
