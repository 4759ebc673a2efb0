package botauth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Anyuluo996/BotShepherd/auth/password"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/store"
	"github.com/Anyuluo996/BotShepherd/util"
)

// KeyTTL is how long a generated temp key stays redeemable.
const KeyTTL = 180 * time.Second

// Policy is the live auth configuration.
type Policy struct {
	// Enabled requires bots to redeem a temp key before their traffic
	// is proxied.
	Enabled bool
	// MaxAttempts is how many failed keys trigger a ban.
	MaxAttempts int
	// BanDuration is how long a ban lasts.
	BanDuration time.Duration
}

// PolicySource returns the current policy; called on every decision so
// config reloads take effect immediately.
type PolicySource func() Policy

// KeyInfo describes an outstanding temp key for the admin surface.
type KeyInfo struct {
	Key       string    `json:"key"`
	BotID     string    `json:"bot_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type keyEntry struct {
	botID     string
	expiresAt time.Time
}

// memState is the in-process fallback record used when no store is
// configured. Lost on restart.
type memState struct {
	authenticated bool
	attempts      int
	bannedUntil   time.Time
}

// Manager mints and validates temporary auth keys and tracks bans.
type Manager struct {
	policy PolicySource
	store  *store.AuthStore
	log    *logger.Logger

	mu   sync.Mutex
	keys map[string]keyEntry
	mem  map[string]*memState
}

// NewManager builds a manager. st may be nil, which switches ban and
// authentication bookkeeping to process memory.
func NewManager(policy PolicySource, st *store.AuthStore, log *logger.Logger) *Manager {
	if policy == nil {
		policy = func() Policy { return Policy{MaxAttempts: 3, BanDuration: 30 * time.Minute} }
	}
	m := &Manager{
		policy: policy,
		store:  st,
		log:    log.WithComponent("botauth"),
		keys:   make(map[string]keyEntry),
		mem:    make(map[string]*memState),
	}
	if st == nil {
		m.log.Warn("No auth store configured, auth state will not survive restarts")
	}
	return m
}

// Enabled reports whether key auth is currently required.
func (m *Manager) Enabled() bool {
	return m.policy().Enabled
}

// GenerateKey mints a temp key for a bot: the first 20 hex characters of
// SHA256("{bot_id}:{unix_ts}:{random}"), uppercased.
func (m *Manager) GenerateKey(botID string) (string, time.Time, error) {
	random, err := password.GenerateToken(16)
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	digest := password.HashSHA256(fmt.Sprintf("%s:%d:%s", botID, now.Unix(), random))
	key := strings.ToUpper(digest[:20])
	expiresAt := now.Add(KeyTTL)

	m.mu.Lock()
	m.keys[key] = keyEntry{botID: botID, expiresAt: expiresAt}
	m.sweepKeysLocked(now)
	m.mu.Unlock()

	m.log.Info("Generated temporary auth key", logger.Fields(
		"bot_id", botID,
		"key", util.MaskSecret(key, 4),
		"expires_at", expiresAt.Format("15:04:05"),
	))
	return key, expiresAt, nil
}

// VerifyKey redeems a key for a bot. The message is user-facing and sent
// back to the chat that issued the auth command.
func (m *Manager) VerifyKey(ctx context.Context, botID, key string) (bool, string) {
	now := time.Now()
	m.mu.Lock()
	m.sweepKeysLocked(now)
	m.mu.Unlock()
	m.clearExpiredBans(ctx, now)

	if banned, remaining := m.banState(ctx, botID, now); banned {
		return false, fmt.Sprintf("验证失败次数过多，已被封禁 %d 分钟", remaining)
	}

	upper := strings.ToUpper(strings.TrimSpace(key))
	m.mu.Lock()
	entry, ok := m.keys[upper]
	if ok && (entry.botID != botID || now.After(entry.expiresAt)) {
		if now.After(entry.expiresAt) {
			delete(m.keys, upper)
		}
		ok = false
	}
	if ok {
		delete(m.keys, upper)
	}
	m.mu.Unlock()

	if !ok {
		m.log.Debug("Auth key rejected", logger.Fields(
			"bot_id", botID,
			"key", util.MaskSecret(upper, 4),
		))
		return false, m.recordFailure(ctx, botID, now)
	}

	m.setAuthenticated(ctx, botID, now)
	m.log.Info("Bot authenticated", logger.Fields("bot_id", botID))
	return true, "验证成功！该Bot已获得访问权限"
}

// IsAuthenticated reports whether a bot may use the proxy. Always true
// when auth is disabled.
func (m *Manager) IsAuthenticated(ctx context.Context, botID string) bool {
	if !m.policy().Enabled {
		return true
	}
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		st := m.mem[botID]
		return st != nil && st.authenticated
	}
	status, err := m.store.Get(ctx, botID)
	if err != nil {
		m.log.Error("Auth status lookup failed", logger.ErrorFields("get", err))
		return false
	}
	return status != nil && status.IsAuthenticated
}

// Status returns the persisted auth record for one bot, nil when none
// exists. In memory mode the record is synthesized from process state.
func (m *Manager) Status(ctx context.Context, botID string) (*store.AuthStatus, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		st := m.mem[botID]
		if st == nil {
			return nil, nil
		}
		return m.memStatusLocked(botID, st), nil
	}
	return m.store.Get(ctx, botID)
}

// ListStatuses returns the auth records of every known bot.
func (m *Manager) ListStatuses(ctx context.Context) ([]store.AuthStatus, error) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		out := make([]store.AuthStatus, 0, len(m.mem))
		for botID, st := range m.mem {
			out = append(out, *m.memStatusLocked(botID, st))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].BotID < out[j].BotID })
		return out, nil
	}
	return m.store.List(ctx)
}

// ValidKeys lists outstanding temp keys, soonest expiry first.
func (m *Manager) ValidKeys() []KeyInfo {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepKeysLocked(now)

	out := make([]KeyInfo, 0, len(m.keys))
	for key, entry := range m.keys {
		out = append(out, KeyInfo{Key: key, BotID: entry.botID, ExpiresAt: entry.expiresAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ClearBan lifts a ban and resets the failure counter.
func (m *Manager) ClearBan(ctx context.Context, botID string) error {
	m.mu.Lock()
	if st := m.mem[botID]; st != nil {
		st.bannedUntil = time.Time{}
		st.attempts = 0
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.ClearBan(ctx, botID)
}

// Revoke wipes a bot's auth record and any outstanding keys, forcing a
// fresh verification.
func (m *Manager) Revoke(ctx context.Context, botID string) error {
	m.mu.Lock()
	delete(m.mem, botID)
	for key, entry := range m.keys {
		if entry.botID == botID {
			delete(m.keys, key)
		}
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, botID)
}

// --- internals ---

func (m *Manager) sweepKeysLocked(now time.Time) {
	for key, entry := range m.keys {
		if now.After(entry.expiresAt) {
			delete(m.keys, key)
		}
	}
}

func (m *Manager) clearExpiredBans(ctx context.Context, now time.Time) {
	m.mu.Lock()
	for _, st := range m.mem {
		if !st.bannedUntil.IsZero() && now.After(st.bannedUntil) {
			st.bannedUntil = time.Time{}
			st.attempts = 0
		}
	}
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if _, err := m.store.ClearExpiredBans(ctx); err != nil {
		m.log.Error("Expired ban sweep failed", logger.ErrorFields("sweep", err))
	}
}

// banState reports whether the bot is banned and for how many more
// minutes, auto-lifting bans whose window has passed.
func (m *Manager) banState(ctx context.Context, botID string, now time.Time) (bool, int) {
	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		st := m.mem[botID]
		if st == nil || st.bannedUntil.IsZero() {
			return false, 0
		}
		if now.After(st.bannedUntil) {
			st.bannedUntil = time.Time{}
			st.attempts = 0
			return false, 0
		}
		return true, remainingMinutes(st.bannedUntil, now)
	}

	status, err := m.store.Get(ctx, botID)
	if err != nil {
		m.log.Error("Ban lookup failed", logger.ErrorFields("get", err))
		return false, 0
	}
	if status == nil || !status.IsBanned {
		return false, 0
	}
	if status.BannedUntil != nil && status.BannedUntil.Before(now) {
		if err := m.store.ClearBan(ctx, botID); err != nil {
			m.log.Error("Ban auto-lift failed", logger.ErrorFields("clear", err))
		}
		return false, 0
	}
	if status.BannedUntil == nil {
		return true, 0
	}
	return true, remainingMinutes(*status.BannedUntil, now)
}

// recordFailure bumps the failure counter, banning the bot once the
// policy's attempt budget is spent. Returns the user-facing message.
func (m *Manager) recordFailure(ctx context.Context, botID string, now time.Time) string {
	p := m.policy()

	if m.store == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		st := m.mem[botID]
		if st == nil {
			st = &memState{}
			m.mem[botID] = st
		}
		st.attempts++
		if st.attempts >= p.MaxAttempts {
			st.bannedUntil = now.Add(p.BanDuration)
			m.log.Warn("Bot banned after repeated auth failures", logger.Fields("bot_id", botID))
			return fmt.Sprintf("验证失败次数过多，已被封禁 %d 分钟", int(p.BanDuration.Minutes()))
		}
		return fmt.Sprintf("密钥无效，还剩 %d 次尝试机会", p.MaxAttempts-st.attempts)
	}

	status, err := m.store.Get(ctx, botID)
	if err != nil {
		m.log.Error("Failure bookkeeping failed", logger.ErrorFields("get", err))
		return "验证失败，请稍后重试"
	}
	if status == nil {
		status = &store.AuthStatus{BotID: botID}
	}
	status.FailedAttempts++
	status.LastAttemptAt = &now

	banned := status.FailedAttempts >= p.MaxAttempts
	if banned {
		status.IsBanned = true
		status.BannedUntil = util.Ptr(now.Add(p.BanDuration))
	}
	if err := m.store.Upsert(ctx, status); err != nil {
		m.log.Error("Failure bookkeeping failed", logger.ErrorFields("upsert", err))
		return "验证失败，请稍后重试"
	}
	if banned {
		m.log.Warn("Bot banned after repeated auth failures", logger.Fields(
			"bot_id", botID,
			"ban_minutes", int(p.BanDuration.Minutes()),
		))
		return fmt.Sprintf("验证失败次数过多，已被封禁 %d 分钟", int(p.BanDuration.Minutes()))
	}
	return fmt.Sprintf("密钥无效，还剩 %d 次尝试机会", p.MaxAttempts-status.FailedAttempts)
}

func (m *Manager) setAuthenticated(ctx context.Context, botID string, now time.Time) {
	if m.store == nil {
		m.mu.Lock()
		st := m.mem[botID]
		if st == nil {
			st = &memState{}
			m.mem[botID] = st
		}
		st.authenticated = true
		st.attempts = 0
		st.bannedUntil = time.Time{}
		m.mu.Unlock()
		return
	}

	status, err := m.store.Get(ctx, botID)
	if err != nil {
		m.log.Error("Auth persist failed", logger.ErrorFields("get", err))
		return
	}
	if status == nil {
		status = &store.AuthStatus{BotID: botID}
	}
	status.IsAuthenticated = true
	status.AuthenticatedAt = &now
	status.FailedAttempts = 0
	status.IsBanned = false
	status.BannedUntil = nil
	if err := m.store.Upsert(ctx, status); err != nil {
		m.log.Error("Auth persist failed", logger.ErrorFields("upsert", err))
	}
}

func (m *Manager) memStatusLocked(botID string, st *memState) *store.AuthStatus {
	out := &store.AuthStatus{
		BotID:           botID,
		IsAuthenticated: st.authenticated,
		FailedAttempts:  st.attempts,
	}
	if !st.bannedUntil.IsZero() {
		out.IsBanned = true
		out.BannedUntil = util.Ptr(st.bannedUntil)
	}
	return out
}

func remainingMinutes(until, now time.Time) int {
	remaining := int(until.Sub(now).Minutes())
	if remaining < 0 {
		return 0
	}
	return remaining
}
