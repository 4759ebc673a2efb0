package logger

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Anyuluo996/BotShepherd/util"
)

// Subsystem logger names. Each gets its own directory under the logs root.
const (
	ComponentWS        = "ws"
	ComponentMessage   = "message"
	ComponentWeb       = "web"
	ComponentCommand   = "command"
	ComponentOperation = "operation"
)

// registry holds the subsystem loggers by name once SetupComponents has
// run.
var registry = struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores a named logger.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get returns the named subsystem logger. Before SetupComponents runs,
// or for an unknown name, it falls back to the global logger tagged
// with the requested component.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

var componentNames = []string{
	ComponentWS, ComponentMessage, ComponentWeb, ComponentCommand, ComponentOperation,
}

// SetupComponents registers the subsystem loggers. With file output enabled
// each logger tees to logs/<name>/; the operation log never rotates.
func SetupComponents(cfg *Config) error {
	cfg.ApplyDefaults()

	maxBytes := util.ParseSize(cfg.MaxFileSize, 10*1024*1024)
	for _, name := range componentNames {
		var sink *fileSink
		if cfg.FileEnabled {
			dir := filepath.Join(cfg.Dir, name)
			if name == ComponentOperation {
				sink = newPlainSink(dir, name)
			} else {
				sink = newFileSink(dir, name, maxBytes)
			}
		}
		if sink != nil {
			Register(name, newWith(cfg, name, sink))
		} else {
			Register(name, newWith(cfg, name, nil))
		}
	}
	return nil
}

// WS returns the WebSocket subsystem logger.
func WS() *Logger { return Get(ComponentWS) }

// Message returns the message-flow subsystem logger.
func Message() *Logger { return Get(ComponentMessage) }

// Web returns the web/admin subsystem logger.
func Web() *Logger { return Get(ComponentWeb) }

// Command returns the in-chat command subsystem logger.
func Command() *Logger { return Get(ComponentCommand) }

// Operation returns the operation audit logger.
func Operation() *Logger { return Get(ComponentOperation) }

// CleanupOld removes rotated log files older than cfg.KeepDays from every
// subsystem directory except the operation log. Returns the number of files
// removed.
func CleanupOld(cfg *Config) (int, error) {
	if !cfg.FileEnabled || cfg.KeepDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.KeepDays)
	removed := 0
	var firstErr error

	for _, name := range componentNames {
		if name == ComponentOperation {
			continue
		}
		dir := filepath.Join(cfg.Dir, name)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				removed++
			}
		}
	}
	return removed, firstErr
}
