package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Anyuluo996/BotShepherd/component"
	"github.com/Anyuluo996/BotShepherd/logger"
)

func TestArchiverFlushesOnStop(t *testing.T) {
	db := openTestDB(t)
	messages := NewMessageStore(db)
	stats := NewStatsStore(db)
	a := NewArchiver(messages, stats, logger.NewDefault("test"))
	a.flushEvery = time.Hour // only the shutdown drain flushes

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		a.Enqueue(&MessageRecord{
			ConnectionID: "main",
			Direction:    DirectionRecv,
			PostType:     "message",
			Raw:          fmt.Sprintf(`{"seq":%d}`, i),
		})
	}
	a.Enqueue(&MessageRecord{
		ConnectionID: "main",
		Direction:    DirectionSend,
		PostType:     "message_sent",
		Raw:          `{"seq":5}`,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	recent, err := messages.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 6 {
		t.Fatalf("got %d records, want 6", len(recent))
	}

	today, err := stats.Today(context.Background())
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	counts := make(map[string]int64)
	for _, st := range today {
		counts[st.Direction] = st.Count
	}
	if counts[DirectionRecv] != 5 || counts[DirectionSend] != 1 {
		t.Errorf("counters = %v, want RECV 5 SEND 1", counts)
	}
	if a.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", a.Dropped())
	}
}

func TestArchiverPeriodicFlush(t *testing.T) {
	db := openTestDB(t)
	messages := NewMessageStore(db)
	a := NewArchiver(messages, NewStatsStore(db), logger.NewDefault("test"))
	a.flushEvery = 50 * time.Millisecond

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	a.Enqueue(&MessageRecord{ConnectionID: "main", Direction: DirectionRecv, Raw: `{}`})

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		recent, err := messages.Recent(context.Background(), 1)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(recent) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("record not flushed within deadline")
}

func TestArchiverDisabled(t *testing.T) {
	a := NewArchiver(nil, nil, logger.NewDefault("test"))

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.Enqueue(&MessageRecord{ConnectionID: "main", Direction: DirectionRecv})
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	h := a.Health(context.Background())
	if h.Status != component.StatusDegraded {
		t.Errorf("health = %s, want degraded", h.Status)
	}
}

func TestArchiverStopIdempotent(t *testing.T) {
	db := openTestDB(t)
	a := NewArchiver(NewMessageStore(db), nil, logger.NewDefault("test"))
	a.flushEvery = 50 * time.Millisecond

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestArchiverOverflowCountsDrops(t *testing.T) {
	db := openTestDB(t)
	a := NewArchiver(NewMessageStore(db), nil, logger.NewDefault("test"))

	// Not started, so nothing drains the queue.
	for i := 0; i < archiveQueueDepth+3; i++ {
		a.Enqueue(&MessageRecord{ConnectionID: "main", Direction: DirectionRecv})
	}
	if got := a.Dropped(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
	h := a.Health(context.Background())
	if h.Status != component.StatusDegraded {
		t.Errorf("health = %s, want degraded after drops", h.Status)
	}
}
