package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Anyuluo996/BotShepherd/component"
	"github.com/Anyuluo996/BotShepherd/logger"
)

// Sweeper purges message records older than the retention window once a day.
// It is a no-op component when retention is unset or the store is absent.
type Sweeper struct {
	messages *MessageStore
	keepDays int
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a retention sweeper. messages may be nil when the
// database is disabled.
func NewSweeper(messages *MessageStore, keepDays int, log *logger.Logger) *Sweeper {
	return &Sweeper{
		messages: messages,
		keepDays: keepDays,
		log:      log.WithComponent("retention"),
	}
}

var _ component.Component = (*Sweeper)(nil)

// Name returns the component name.
func (s *Sweeper) Name() string { return "retention" }

// Start runs an initial purge and then sweeps once a day.
func (s *Sweeper) Start(_ context.Context) error {
	if !s.enabled() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.sweep(ctx)

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports the sweeper state.
func (s *Sweeper) Health(_ context.Context) component.Health {
	if !s.enabled() {
		return component.Health{
			Name:    s.Name(),
			Status:  component.StatusDegraded,
			Message: "disabled",
		}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (s *Sweeper) Describe() component.Description {
	details := "disabled"
	if s.enabled() {
		details = fmt.Sprintf("keep %d days", s.keepDays)
	}
	return component.Description{
		Name:    "Retention",
		Type:    "worker",
		Details: details,
	}
}

func (s *Sweeper) enabled() bool {
	return s.messages != nil && s.keepDays > 0
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.messages.Purge(ctx, s.keepDays)
	if err != nil {
		s.log.Error("Message purge failed", map[string]interface{}{
			"error":     err.Error(),
			"keep_days": s.keepDays,
		})
		return
	}
	if removed > 0 {
		s.log.Info("Purged old messages", map[string]interface{}{
			"removed":   removed,
			"keep_days": s.keepDays,
		})
	}
}
