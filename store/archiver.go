package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Anyuluo996/BotShepherd/component"
	"github.com/Anyuluo996/BotShepherd/logger"
	"github.com/Anyuluo996/BotShepherd/pipeline"
	"github.com/Anyuluo996/BotShepherd/resilience"
)

const (
	// archiveQueueDepth bounds memory while the database stalls. When the
	// queue is full new records are dropped rather than blocking the
	// forwarding path.
	archiveQueueDepth = 4096

	// archiveFlushInterval is how long a record waits at most before it
	// hits the database.
	archiveFlushInterval = 2 * time.Second
)

// Archiver turns per-frame recording into periodic batch writes. Message
// rows go in with bulk inserts and the daily counters take one upsert per
// (date, connection, direction) seen in the window, so the forwarding
// path never waits on sqlite.
type Archiver struct {
	messages *MessageStore
	stats    *StatsStore
	log      *logger.Logger

	in         chan archiveItem
	quit       chan struct{}
	flushEvery time.Duration
	dropped    atomic.Int64

	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

// archiveItem carries the record together with the date it was seen, so
// a flush that crosses midnight still counts frames on the right day.
type archiveItem struct {
	rec  *MessageRecord
	date string
}

// NewArchiver creates an archiver writing to the given stores. messages
// may be nil when the database is disabled; the archiver is then inert.
func NewArchiver(messages *MessageStore, stats *StatsStore, log *logger.Logger) *Archiver {
	return &Archiver{
		messages:   messages,
		stats:      stats,
		log:        log.WithComponent("archiver"),
		in:         make(chan archiveItem, archiveQueueDepth),
		quit:       make(chan struct{}),
		flushEvery: archiveFlushInterval,
	}
}

var _ component.Component = (*Archiver)(nil)

// Name returns the component name.
func (a *Archiver) Name() string { return "archiver" }

// Enqueue queues one record for the next batch. It never blocks; on a
// full queue the record is dropped and counted.
func (a *Archiver) Enqueue(rec *MessageRecord) {
	if !a.enabled() {
		return
	}
	item := archiveItem{rec: rec, date: DateKey(time.Now())}
	select {
	case a.in <- item:
	default:
		if a.dropped.Add(1)%100 == 1 {
			a.log.Warn("Archive queue full, dropping records", logger.Fields(
				"dropped", a.dropped.Load(),
			))
		}
	}
}

// Dropped returns how many records were discarded on queue overflow.
func (a *Archiver) Dropped() int64 { return a.dropped.Load() }

// Start launches the batch loop.
func (a *Archiver) Start(_ context.Context) error {
	if !a.enabled() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done != nil {
		return nil
	}
	a.done = make(chan struct{})
	done := a.done

	source := pipeline.FromFunc(func(context.Context) pipeline.Iterator[archiveItem] {
		return &archiveQueueIter{ch: a.in, quit: a.quit}
	})
	run := pipeline.Drain(pipeline.TumblingWindow(source, a.flushEvery), a.flush)

	go func() {
		defer close(done)
		if err := run.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Archive loop exited", logger.ErrorFields("run", err))
		}
	}()
	return nil
}

// Stop drains the queue, flushes the final window and waits for the loop
// to exit.
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	done := a.done
	if done != nil && !a.stopped {
		a.stopped = true
		close(a.quit)
	}
	a.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports degraded once records have been dropped.
func (a *Archiver) Health(_ context.Context) component.Health {
	if !a.enabled() {
		return component.Health{
			Name:    a.Name(),
			Status:  component.StatusDegraded,
			Message: "disabled",
		}
	}
	if n := a.dropped.Load(); n > 0 {
		return component.Health{
			Name:    a.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("%d records dropped", n),
		}
	}
	return component.Health{Name: a.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (a *Archiver) Describe() component.Description {
	details := "disabled"
	if a.enabled() {
		details = fmt.Sprintf("flush every %s, queue %d", a.flushEvery, archiveQueueDepth)
	}
	return component.Description{
		Name:    "Archiver",
		Type:    "worker",
		Details: details,
	}
}

func (a *Archiver) enabled() bool { return a.messages != nil }

// flush writes one window. Transient sqlite busy errors get a short
// retry; anything still failing is logged and absorbed, a failed batch
// must not stop the loop.
func (a *Archiver) flush(ctx context.Context, batch []archiveItem) error {
	if len(batch) == 0 {
		return nil
	}

	type statKey struct {
		date, connectionID, direction string
	}
	recs := make([]*MessageRecord, len(batch))
	counts := make(map[statKey]int64, 4)
	for i, item := range batch {
		recs[i] = item.rec
		counts[statKey{item.date, item.rec.ConnectionID, item.rec.Direction}]++
	}

	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		Jitter:         0.2,
	}, func() error {
		return a.messages.SaveBatch(ctx, recs)
	})
	if err != nil {
		a.log.Error("Batch save failed", logger.ErrorFields("save", err))
	}
	if a.stats == nil {
		return nil
	}
	for key, n := range counts {
		if err := a.stats.Increment(ctx, key.date, key.connectionID, key.direction, n); err != nil {
			a.log.Error("Stat increment failed", logger.ErrorFields("stats", err))
		}
	}
	return nil
}

// archiveQueueIter adapts the enqueue channel to a pipeline source. After
// quit closes it drains whatever is still buffered, then reports
// exhaustion so the final window flushes.
type archiveQueueIter struct {
	ch   chan archiveItem
	quit <-chan struct{}
}

func (it *archiveQueueIter) Next(ctx context.Context) (archiveItem, bool, error) {
	select {
	case item := <-it.ch:
		return item, true, nil
	case <-it.quit:
		select {
		case item := <-it.ch:
			return item, true, nil
		default:
			return archiveItem{}, false, nil
		}
	case <-ctx.Done():
		return archiveItem{}, false, ctx.Err()
	}
}

func (it *archiveQueueIter) Close() error { return nil }
