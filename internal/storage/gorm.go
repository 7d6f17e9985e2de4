package storage

import (
	"context"
	"time"

	"github.com/angelmondragon/crewsync/pkg/db"
	"github.com/angelmondragon/crewsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps documents in the sync_documents table (sqlite or postgres).
type SQLStore struct {
	client *db.Client
	now    func() time.Time
}

func NewSQLStore(client *db.Client) *SQLStore {
	return &SQLStore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc models.SyncDocument
	err := s.client.DB().WithContext(ctx).
		Where("doc_key = ?", key).
		Take(&doc).Error
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Body), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, body []byte) error {
	doc := models.SyncDocument{
		DocKey:    key,
		Body:      string(body),
		UpdatedAt: s.now(),
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "doc_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).Create(&doc).Error
	})
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}
