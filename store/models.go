package store

import (
	"time"

	"github.com/Anyuluo996/BotShepherd/database"
)

// Message direction relative to the bot account: RECV is traffic the bot
// received (events from the client), SEND is traffic the bot sent
// (successful API sends recorded as message_sent).
const (
	DirectionRecv = "RECV"
	DirectionSend = "SEND"
)

// MessageRecord is one processed frame persisted for history and statistics.
type MessageRecord struct {
	database.BaseModel
	ConnectionID string `gorm:"index;size:64" json:"connection_id"`
	Direction    string `gorm:"index;size:4" json:"direction"`
	PostType     string `gorm:"size:32" json:"post_type"`
	MessageType  string `gorm:"size:16" json:"message_type"`
	SelfID       string `gorm:"index;size:32" json:"self_id"`
	UserID       string `gorm:"size:32" json:"user_id"`
	GroupID      string `gorm:"size:32" json:"group_id"`
	Raw          string `gorm:"type:text" json:"raw"`
}

// AuthStatus tracks per-bot authentication state: whether the account has
// verified a temp key, its failed attempt count, and any active ban.
type AuthStatus struct {
	BotID           string     `gorm:"primaryKey;size:32" json:"bot_id"`
	IsAuthenticated bool       `json:"is_authenticated"`
	AuthenticatedAt *time.Time `json:"authenticated_at,omitempty"`
	FailedAttempts  int        `json:"failed_attempts"`
	LastAttemptAt   *time.Time `json:"last_attempt_at,omitempty"`
	IsBanned        bool       `json:"is_banned"`
	BannedUntil     *time.Time `json:"banned_until,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BanActive reports whether the ban is still in effect at the given time.
func (a *AuthStatus) BanActive(now time.Time) bool {
	return a.IsBanned && a.BannedUntil != nil && now.Before(*a.BannedUntil)
}

// DailyStat is a per-day message counter, keyed by day, connection and direction.
type DailyStat struct {
	database.BaseModel
	Date         string `gorm:"size:10;uniqueIndex:idx_daily_stats_key,priority:1" json:"date"`
	ConnectionID string `gorm:"size:64;uniqueIndex:idx_daily_stats_key,priority:2" json:"connection_id"`
	Direction    string `gorm:"size:4;uniqueIndex:idx_daily_stats_key,priority:3" json:"direction"`
	Count        int64  `json:"count"`
}

// DateKey formats a time as the DailyStat date key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// AllModels returns every model for auto-migration, in creation order.
func AllModels() []interface{} {
	return []interface{}{&MessageRecord{}, &AuthStatus{}, &DailyStat{}}
}
