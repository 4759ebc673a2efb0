package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Anyuluo996/BotShepherd/database"
)

// AuthStore persists per-bot authentication state.
type AuthStore struct {
	db *database.DB
}

// NewAuthStore creates an auth store on the given database.
func NewAuthStore(db *database.DB) *AuthStore {
	return &AuthStore{db: db}
}

// Get loads the auth record for a bot. Returns (nil, nil) when no record exists.
func (s *AuthStore) Get(ctx context.Context, botID string) (*AuthStatus, error) {
	var status AuthStatus
	err := s.db.WithContext(ctx).Where("bot_id = ?", botID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// Upsert inserts or fully replaces the auth record for status.BotID.
func (s *AuthStore) Upsert(ctx context.Context, status *AuthStatus) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bot_id"}},
			UpdateAll: true,
		}).
		Create(status).Error
}

// List returns all auth records, newest activity first.
func (s *AuthStore) List(ctx context.Context) ([]AuthStatus, error) {
	var statuses []AuthStatus
	err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&statuses).Error
	return statuses, err
}

// ListBanned returns records with an active ban flag.
func (s *AuthStore) ListBanned(ctx context.Context) ([]AuthStatus, error) {
	var statuses []AuthStatus
	err := s.db.WithContext(ctx).
		Where("is_banned = ?", true).
		Order("banned_until DESC").
		Find(&statuses).Error
	return statuses, err
}

// ClearBan lifts a ban and resets the failure counter.
func (s *AuthStore) ClearBan(ctx context.Context, botID string) error {
	return s.db.WithContext(ctx).
		Model(&AuthStatus{}).
		Where("bot_id = ?", botID).
		Updates(map[string]interface{}{
			"is_banned":       false,
			"banned_until":    nil,
			"failed_attempts": 0,
		}).Error
}

// Delete removes the auth record entirely, forcing the bot to re-verify.
func (s *AuthStore) Delete(ctx context.Context, botID string) error {
	return s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Delete(&AuthStatus{}).Error
}

// ClearExpiredBans lifts every ban whose window has passed, returning how
// many records changed. Runs before each validation so stale bans never
// block a bot.
func (s *AuthStore) ClearExpiredBans(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&AuthStatus{}).
		Where("is_banned = ? AND banned_until < ?", true, time.Now()).
		Updates(map[string]interface{}{
			"is_banned":       false,
			"banned_until":    nil,
			"failed_attempts": 0,
		})
	return res.RowsAffected, res.Error
}
