// Package errors provides unified error handling across the proxy.
// It implements structured error types with machine-readable codes, HTTP
// status mapping, and retryable detection, so WebSocket session errors,
// store failures, and admin API responses all share one taxonomy.
package errors
