package botauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Anyuluo996/BotShepherd/database"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/store"
)

func testPolicy() Policy {
	return Policy{Enabled: true, MaxAttempts: 3, BanDuration: 30 * time.Minute}
}

func newStoreManager(t *testing.T) *Manager {
	t.Helper()
	db, err := database.New(database.Config{Enabled: true, Path: ":memory:", LogLevel: "silent"}, logger.NewDefault("test"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.AutoMigrate(store.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewManager(testPolicy, store.NewAuthStore(db), logger.NewDefault("test"))
}

func newMemoryManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(testPolicy, nil, logger.NewDefault("test"))
}

func TestGenerateKeyShape(t *testing.T) {
	m := newMemoryManager(t)

	key, expiresAt, err := m.GenerateKey("10001")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if len(key) != 20 {
		t.Errorf("key length = %d, want 20", len(key))
	}
	if key != strings.ToUpper(key) {
		t.Errorf("key %q is not uppercased", key)
	}
	for _, c := range key {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			t.Errorf("key %q contains non-hex character %q", key, c)
			break
		}
	}
	ttl := time.Until(expiresAt)
	if ttl < KeyTTL-5*time.Second || ttl > KeyTTL {
		t.Errorf("expiry %v from now, want about %v", ttl, KeyTTL)
	}
}

func TestVerifyKeyHappyPath(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	key, _, err := m.GenerateKey("10001")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	ok, msg := m.VerifyKey(ctx, "10001", key)
	if !ok {
		t.Fatalf("VerifyKey failed: %s", msg)
	}
	if !m.IsAuthenticated(ctx, "10001") {
		t.Error("bot not authenticated after successful verify")
	}

	status, err := m.Status(ctx, "10001")
	if err != nil || status == nil {
		t.Fatalf("Status: %v, %v", status, err)
	}
	if !status.IsAuthenticated || status.AuthenticatedAt == nil || status.FailedAttempts != 0 {
		t.Errorf("persisted status = %+v", status)
	}
}

func TestVerifyKeyIsSingleUse(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	if ok, _ := m.VerifyKey(ctx, "10001", key); !ok {
		t.Fatal("first redemption failed")
	}
	if ok, _ := m.VerifyKey(ctx, "10001", key); ok {
		t.Error("key redeemed twice")
	}
}

func TestVerifyKeyIsCaseInsensitive(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	if ok, msg := m.VerifyKey(ctx, "10001", strings.ToLower(key)); !ok {
		t.Errorf("lowercased key rejected: %s", msg)
	}
}

func TestVerifyKeyBoundToBot(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	ok, msg := m.VerifyKey(ctx, "20002", key)
	if ok {
		t.Fatal("key for 10001 redeemed by 20002")
	}
	if !strings.Contains(msg, "次尝试机会") {
		t.Errorf("message = %q, want remaining-attempts notice", msg)
	}
	if m.IsAuthenticated(ctx, "20002") {
		t.Error("wrong bot authenticated")
	}
}

func TestVerifyKeyExpired(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	m.mu.Lock()
	entry := m.keys[key]
	entry.expiresAt = time.Now().Add(-time.Second)
	m.keys[key] = entry
	m.mu.Unlock()

	if ok, _ := m.VerifyKey(ctx, "10001", key); ok {
		t.Error("expired key redeemed")
	}
	m.mu.Lock()
	_, still := m.keys[key]
	m.mu.Unlock()
	if still {
		t.Error("expired key not removed on touch")
	}
}

func TestBanAfterMaxAttempts(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	var msg string
	for i := 0; i < 3; i++ {
		_, msg = m.VerifyKey(ctx, "10001", "WRONGKEY")
	}
	if !strings.Contains(msg, "已被封禁") {
		t.Fatalf("third failure message = %q, want ban notice", msg)
	}

	status, _ := m.Status(ctx, "10001")
	if status == nil || !status.IsBanned || status.BannedUntil == nil {
		t.Fatalf("status after ban = %+v", status)
	}

	// Even a valid key is refused while the ban holds.
	key, _, _ := m.GenerateKey("10001")
	ok, msg := m.VerifyKey(ctx, "10001", key)
	if ok || !strings.Contains(msg, "已被封禁") {
		t.Errorf("banned bot verified: ok=%v msg=%q", ok, msg)
	}
}

func TestBanExpiresOnTouch(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.VerifyKey(ctx, "10001", "WRONGKEY")
	}
	m.mu.Lock()
	m.mem["10001"].bannedUntil = time.Now().Add(-time.Minute)
	m.mu.Unlock()

	key, _, _ := m.GenerateKey("10001")
	if ok, msg := m.VerifyKey(ctx, "10001", key); !ok {
		t.Errorf("verify after ban expiry failed: %s", msg)
	}
}

func TestClearBan(t *testing.T) {
	m := newStoreManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.VerifyKey(ctx, "10001", "WRONGKEY")
	}
	if err := m.ClearBan(ctx, "10001"); err != nil {
		t.Fatalf("ClearBan: %v", err)
	}

	key, _, _ := m.GenerateKey("10001")
	if ok, msg := m.VerifyKey(ctx, "10001", key); !ok {
		t.Errorf("verify after ClearBan failed: %s", msg)
	}
}

func TestIsAuthenticatedWhenAuthDisabled(t *testing.T) {
	m := NewManager(func() Policy { return Policy{Enabled: false, MaxAttempts: 3, BanDuration: time.Minute} }, nil, logger.NewDefault("test"))

	if !m.IsAuthenticated(context.Background(), "anyone") {
		t.Error("auth disabled should trust every bot")
	}
}

func TestMemoryFallback(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	if ok, msg := m.VerifyKey(ctx, "10001", key); !ok {
		t.Fatalf("VerifyKey: %s", msg)
	}
	if !m.IsAuthenticated(ctx, "10001") {
		t.Error("memory mode lost authentication")
	}

	statuses, err := m.ListStatuses(ctx)
	if err != nil || len(statuses) != 1 || !statuses[0].IsAuthenticated {
		t.Errorf("ListStatuses = %+v, %v", statuses, err)
	}

	if err := m.Revoke(ctx, "10001"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if m.IsAuthenticated(ctx, "10001") {
		t.Error("revoked bot still authenticated")
	}
}

func TestValidKeys(t *testing.T) {
	m := newMemoryManager(t)

	if _, _, err := m.GenerateKey("10001"); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, _, err := m.GenerateKey("20002"); err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	keys := m.ValidKeys()
	if len(keys) != 2 {
		t.Fatalf("ValidKeys() returned %d keys, want 2", len(keys))
	}
	for _, k := range keys {
		if k.Key == "" || k.BotID == "" || k.ExpiresAt.IsZero() {
			t.Errorf("incomplete key info: %+v", k)
		}
	}
	if keys[0].ExpiresAt.After(keys[1].ExpiresAt) {
		t.Error("keys not sorted by expiry")
	}
}

func TestRevokeDropsOutstandingKeys(t *testing.T) {
	m := newMemoryManager(t)
	ctx := context.Background()

	key, _, _ := m.GenerateKey("10001")
	if err := m.Revoke(ctx, "10001"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := m.VerifyKey(ctx, "10001", key); ok {
		t.Error("key survived Revoke")
	}
}
