// Package database provides a GORM-backed SQLite wrapper with connection
// pooling, health checks, transactions, and auto-migration.
//
// # Quick Start
//
// Register the database component with the bootstrap registry:
//
//	cfg := database.Config{Enabled: true, Path: "/app/data/botshepherd.db"}
//	comp := database.NewComponent(cfg, log).
//	    WithAutoMigrate(&store.MessageRecord{}, &store.AuthStatus{}, &store.DailyStat{})
//	app.Register(comp)
//
// The file is opened with WAL journaling, foreign keys enabled and a busy
// timeout, so a reader and the single writer can overlap safely.
//
// # Optional Component
//
// The component respects the Enabled flag in configuration. When disabled,
// Start returns immediately without opening the file, DB() returns nil, and
// Health reports "disabled". Callers that need persistence (message history,
// bot auth state) fall back to in-memory storage in that case.
//
// # Error Translation
//
// FromDatabase maps GORM and SQLite errors onto AppError values so HTTP
// handlers can return proper status codes: record-not-found becomes 404,
// UNIQUE constraint failures become 409, and lock contention becomes a
// retryable 503.
package database
