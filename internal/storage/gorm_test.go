package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/crewsync/pkg/db/models"
)

func TestSQLStoreUpsertKeepsOneRowPerKey(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	require.NoError(t, store.Set(ctx, "notifications_7", []byte(`{"items":[]}`)))

	second := first.Add(time.Minute)
	store.now = func() time.Time { return second }
	require.NoError(t, store.Set(ctx, "notifications_7", []byte(`{"items":[{"id":1}]}`)))
	require.NoError(t, store.Set(ctx, "outbox_queue", []byte(`[]`)))

	var docs []models.SyncDocument
	require.NoError(t, store.client.DB().WithContext(ctx).Order("doc_key").Find(&docs).Error)
	require.Len(t, docs, 2)

	assert.Equal(t, "notifications_7", docs[0].DocKey)
	assert.JSONEq(t, `{"items":[{"id":1}]}`, docs[0].Body)
	assert.True(t, docs[0].UpdatedAt.Equal(second), "updated_at should follow the last write")
	assert.Equal(t, "outbox_queue", docs[1].DocKey)

	body, err := store.Get(ctx, "notifications_7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":1}]}`, string(body))
}

func TestSQLStoreMissingKey(t *testing.T) {
	store := newSQLStore(t)

	_, err := store.Get(context.Background(), "never-written")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Ping(context.Background()))
}
