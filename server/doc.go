// Package server provides the unified HTTP server for BotShepherd using Gin
// with HTTP/2 and h2c support. The admin API, the system endpoints, and the
// WebSocket proxy all share the main port: Gin routes own their paths and
// everything else falls through to the proxy dispatcher via SetFallback.
//
// The server follows the component pattern with lifecycle management,
// health endpoints, and configurable middleware.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - RequestLogger: Request/response logging with duration tracking
//   - CORS: Cross-origin resource sharing configuration
//   - RequestID: Request ID generation and propagation
//   - Observability: Per-request tracing and metrics
//   - RateLimit: Sliding-window rate limiting
//   - BodySizeLimit: Request body size limits
//   - Auth: Bearer token authentication
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Health check aggregation across components
//   - /info: Application information and uptime
//   - /version: Build version information
//   - Metrics: runtime memory and goroutine stats (mounted by the admin API)
package server
