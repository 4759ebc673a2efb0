// Package store holds the SQLite-backed persistence for the proxy: message
// history, per-bot authentication state, and daily statistics.
//
// Each store wraps the shared database.DB and scopes every query to the
// caller's context. Models are registered for auto-migration via AllModels.
// When the database component is disabled the stores are never constructed;
// callers treat a nil store as "no persistence".
package store
