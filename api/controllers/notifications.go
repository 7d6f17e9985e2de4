package controllers

import (
	"net/http"

	"github.com/angelmondragon/crewsync/api/middleware"
	"github.com/angelmondragon/crewsync/api/responses"
	"github.com/angelmondragon/crewsync/api/validators"
	"github.com/angelmondragon/crewsync/internal/notifications"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// NotificationTracker hands out the merger for an employee.
type NotificationTracker interface {
	Track(employeeID string) (*notifications.Merger, error)
	Tracked() []string
}

type notificationListResponse struct {
	Items         []notifications.Item `json:"items"`
	Unread        int                  `json:"unread"`
	HighWaterMark string               `json:"highWaterMark,omitempty"`
}

type markReadRequest struct {
	EmployeeID string             `json:"employeeId" validate:"required,max=128"`
	IDs        []notifications.ID `json:"ids"`
}

// ListNotifications returns the merged list. refresh=true polls the feed first.
func ListNotifications(tracker NotificationTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merger, ok := resolveMerger(w, r, tracker, logg)
		if !ok {
			return
		}
		refresh, err := validators.ParseQueryBool(r, "refresh", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if refresh {
			if _, err := merger.Poll(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh notifications"))
				return
			}
		}
		items := merger.Items(r.Context())
		responses.WriteSuccess(w, notificationListResponse{
			Items:         items,
			Unread:        merger.UnreadCount(r.Context()),
			HighWaterMark: merger.HighWaterMark(),
		})
	}
}

// MarkNotificationsRead acknowledges notifications remotely, then locally.
func MarkNotificationsRead(tracker NotificationTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markReadRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := middleware.AuthorizeEmployee(r.Context(), req.EmployeeID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		merger, err := tracker.Track(req.EmployeeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := merger.MarkRead(r.Context(), req.IDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read"))
			return
		}
		responses.WriteSuccess(w, map[string]int{"updated": updated})
	}
}

// NotificationToast returns the visible toast, or null.
func NotificationToast(tracker NotificationTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merger, ok := resolveMerger(w, r, tracker, logg)
		if !ok {
			return
		}
		toast, visible := merger.Toast()
		if !visible {
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, toast)
	}
}

func resolveMerger(w http.ResponseWriter, r *http.Request, tracker NotificationTracker, logg *logger.Logger) (*notifications.Merger, bool) {
	employeeID, err := middleware.ResolveEmployee(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	if employeeID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "employeeId is required"))
		return nil, false
	}
	merger, err := tracker.Track(employeeID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return merger, true
}

// TrackedEmployees lists every employee the poller is following.
func TrackedEmployees(tracker NotificationTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracked := tracker.Tracked()
		responses.WriteList(w, tracked, len(tracked))
	}
}
