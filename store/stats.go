package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Anyuluo996/BotShepherd/database"
)

// StatsStore maintains per-day message counters.
type StatsStore struct {
	db *database.DB
}

// NewStatsStore creates a stats store on the given database.
func NewStatsStore(db *database.DB) *StatsStore {
	return &StatsStore{db: db}
}

// Increment adds delta to the counter for (date, connection, direction),
// creating the row if it does not exist yet.
func (s *StatsStore) Increment(ctx context.Context, date, connectionID, direction string, delta int64) error {
	if delta == 0 {
		return nil
	}
	stat := DailyStat{
		Date:         date,
		ConnectionID: connectionID,
		Direction:    direction,
		Count:        delta,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}, {Name: "connection_id"}, {Name: "direction"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count":      gorm.Expr("count + ?", delta),
				"updated_at": time.Now(),
			}),
		}).
		Create(&stat).Error
}

// Today returns all counters for the current day.
func (s *StatsStore) Today(ctx context.Context) ([]DailyStat, error) {
	return s.Range(ctx, DateKey(time.Now()), DateKey(time.Now()))
}

// Range returns counters for dates in [from, to], ordered by date.
func (s *StatsStore) Range(ctx context.Context, from, to string) ([]DailyStat, error) {
	var stats []DailyStat
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, connection_id ASC, direction ASC").
		Find(&stats).Error
	return stats, err
}
