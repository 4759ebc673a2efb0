package store

import (
	"context"
	"time"

	"github.com/Anyuluo996/BotShepherd/database"
	"github.com/Anyuluo996/BotShepherd/database/query"
)

// MessageStore persists processed frames and serves history queries.
type MessageStore struct {
	db *database.DB
}

// NewMessageStore creates a message store on the given database.
func NewMessageStore(db *database.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Save persists a single message record.
func (s *MessageStore) Save(ctx context.Context, rec *MessageRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// SaveBatch persists a set of records with bulk inserts.
func (s *MessageStore) SaveBatch(ctx context.Context, recs []*MessageRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(recs, 100).Error
}

// Recent returns the newest records, most recent first.
func (s *MessageStore) Recent(ctx context.Context, limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []MessageRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Purge hard-deletes records older than keepDays and returns the number removed.
func (s *MessageStore) Purge(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -keepDays)
	res := s.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&MessageRecord{})
	return res.RowsAffected, res.Error
}

// Search runs a filtered, paginated history query.
func (s *MessageStore) Search(ctx context.Context, params query.Params) (*query.Result[MessageRecord], error) {
	return query.ApplyToGorm[MessageRecord](
		s.db.WithContext(ctx).Model(&MessageRecord{}),
		params,
		MessageQueryConfig(),
	)
}

// MessageQueryConfig defines the filter surface the admin API exposes for
// message history: which columns can be filtered, sorted and faceted.
func MessageQueryConfig() query.Config {
	return query.Config{
		SearchFields:      []string{"raw"},
		AllowedSortFields: []string{"created_at"},
		AllowedFilters: []string{
			"connection_id", "direction", "post_type",
			"message_type", "self_id", "user_id", "group_id",
		},
		DefaultSort: "created_at DESC",
		TimeField:   "created_at",
		FacetFields: []string{"direction", "connection_id", "post_type"},
	}
}
