package notifications

import (
	"context"
	"strings"

	"github.com/angelmondragon/crewsync/internal/storage"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
)

const stateKeyPrefix = "notifications"

// state is the document persisted per employee.
type state struct {
	Items         []Item `json:"items"`
	HighWaterMark string `json:"highWaterMark,omitempty"`
}

// repository loads and saves per-employee notification state.
type repository interface {
	Load(ctx context.Context, employeeID string) (state, bool, error)
	Save(ctx context.Context, employeeID string, st state) error
}

type documentRepository struct {
	store storage.DocumentStore
}

func newRepository(store storage.DocumentStore) repository {
	return &documentRepository{store: store}
}

// StateKey names the document holding an employee's notifications.
func StateKey(employeeID string) string {
	return stateKeyPrefix + "_" + strings.TrimSpace(employeeID)
}

func (r *documentRepository) Load(ctx context.Context, employeeID string) (state, bool, error) {
	var st state
	found, err := storage.LoadJSON(ctx, r.store, StateKey(employeeID), &st)
	if err != nil {
		return state{}, false, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "load notifications")
	}
	return st, found, nil
}

func (r *documentRepository) Save(ctx context.Context, employeeID string, st state) error {
	if st.Items == nil {
		st.Items = []Item{}
	}
	if err := storage.SaveJSON(ctx, r.store, StateKey(employeeID), st); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "save notifications")
	}
	return nil
}
