// Package logger provides structured logging for the proxy using zerolog.
//
// Besides the usual leveled console output, it maintains one named logger
// per subsystem (ws, message, web, command, operation), each teeing to its
// own file tree under the logs directory with daily and size-based rotation
// and a keep-days retention sweep. The operation log is append-only.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  file_enabled: true
//	  keep_days: 7
//	  max_file_size: "10MB"
//
// # Usage
//
//	logger.WS().Info("client connected", logger.Fields("connection_id", id))
package logger
