package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/crewsync/api/middleware"
	"github.com/angelmondragon/crewsync/api/responses"
	"github.com/angelmondragon/crewsync/api/validators"
	"github.com/angelmondragon/crewsync/internal/outbox"
	"github.com/angelmondragon/crewsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

// OutboxService is the slice of the outbox engine the API drives.
type OutboxService interface {
	Enqueue(ctx context.Context, params outbox.EnqueueParams) (outbox.Item, error)
	List(ctx context.Context, employeeID string) []outbox.Item
	Get(ctx context.Context, id string) (outbox.Item, bool)
	Retry(ctx context.Context, id string) (outbox.Item, bool)
	Remove(ctx context.Context, id string) bool
}

// PayloadDecoder validates a payload for its kind.
type PayloadDecoder interface {
	Decode(kind enums.OutboxKind, payload json.RawMessage) (any, error)
}

// Flusher triggers a flush pass, reporting false when one was already running.
type Flusher interface {
	FlushNow(ctx context.Context) bool
}

type enqueueRequest struct {
	Kind           string          `json:"kind" validate:"required"`
	EmployeeID     string          `json:"employeeId" validate:"required,max=128"`
	ClientID       string          `json:"clientId" validate:"omitempty,max=128"`
	ClientFilledAt *time.Time      `json:"clientFilledAt"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
}

// EnqueueOutboxItem validates a submission against its kind's schema and
// queues it. Resubmitting the same clientId returns the queued item.
func EnqueueOutboxItem(svc OutboxService, decoder PayloadDecoder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enqueueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseOutboxKind(req.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind").
				WithDetails(map[string]string{"kind": "must be one of " + kindList()}))
			return
		}
		employeeID := validators.CleanID(req.EmployeeID)
		if err := middleware.AuthorizeEmployee(r.Context(), employeeID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decoder != nil {
			if _, err := decoder.Decode(kind, req.Payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		params := outbox.EnqueueParams{
			Kind:       kind,
			EmployeeID: employeeID,
			Payload:    req.Payload,
			ClientID:   validators.CleanID(req.ClientID),
		}
		if req.ClientFilledAt != nil {
			params.ClientFilledAt = *req.ClientFilledAt
		}
		item, err := svc.Enqueue(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, item)
	}
}

func kindList() string {
	kinds := enums.OutboxKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

// ListOutboxItems returns queued items in stored order, optionally narrowed
// by the status and kind query parameters.
func ListOutboxItems(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID, err := middleware.ResolveEmployee(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		keep, err := listFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]outbox.Item, 0)
		for _, item := range svc.List(r.Context(), employeeID) {
			if keep(item) {
				items = append(items, item)
			}
		}
		responses.WriteList(w, items, len(items))
	}
}

func listFilter(r *http.Request) (func(outbox.Item) bool, error) {
	var (
		status enums.OutboxStatus
		kind   enums.OutboxKind
		err    error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if status, err = enums.ParseOutboxStatus(strings.ToUpper(raw)); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		if kind, err = enums.ParseOutboxKind(raw); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind filter")
		}
	}
	return func(item outbox.Item) bool {
		return (status == "" || item.Status == status) && (kind == "" || item.Kind == kind)
	}, nil
}

// FlushOutbox runs a flush pass now and returns what is left for the caller.
func FlushOutbox(svc OutboxService, flusher Flusher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID, err := middleware.ResolveEmployee(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ran := flusher.FlushNow(r.Context())
		remaining := svc.List(r.Context(), employeeID)
		status := http.StatusOK
		if !ran {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"flushed":   ran,
			"remaining": remaining,
		})
	}
}

// RetryOutboxItem makes an item eligible immediately.
func RetryOutboxItem(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authorizedItem(w, r, svc, logg)
		if !ok {
			return
		}
		item, found := svc.Retry(r.Context(), id)
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "outbox item not found"))
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// DeleteOutboxItem drops an item without sending it.
func DeleteOutboxItem(svc OutboxService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := authorizedItem(w, r, svc, logg)
		if !ok {
			return
		}
		if !svc.Remove(r.Context(), id) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "outbox item not found"))
			return
		}
		responses.WriteNoContent(w)
	}
}

func authorizedItem(w http.ResponseWriter, r *http.Request, svc OutboxService, logg *logger.Logger) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "itemId"))
	if id == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id is required"))
		return "", false
	}
	item, found := svc.Get(r.Context(), id)
	if !found {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "outbox item not found"))
		return "", false
	}
	if err := middleware.AuthorizeEmployee(r.Context(), item.EmployeeID); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return "", false
	}
	return id, true
}
