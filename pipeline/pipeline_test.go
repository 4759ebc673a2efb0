package pipeline

import (
	"context"
	"errors"
	"testing"
)

// listSource yields a fixed set of values. Test plumbing for the
// terminals; production sources are channel-backed.
type listSource[T any] struct {
	items []T
	pos   int
}

func (s *listSource[T]) Next(context.Context) (T, bool, error) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, false, nil
	}
	v := s.items[s.pos]
	s.pos++
	return v, true, nil
}

func (s *listSource[T]) Close() error { return nil }

func fromList[T any](items []T) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] {
		return &listSource[T]{items: items}
	})
}

func TestCollect(t *testing.T) {
	got, err := Collect(context.Background(), fromList([]int{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestCollect_Empty(t *testing.T) {
	got, err := Collect(context.Background(), fromList([]int{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestDrain_Run(t *testing.T) {
	var collected []int
	r := Drain(fromList([]int{1, 2, 3}), func(_ context.Context, n int) error {
		collected = append(collected, n)
		return nil
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(collected, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", collected)
	}
}

func TestDrain_SinkError(t *testing.T) {
	sinkErr := errors.New("sink failed")
	var seen int
	r := Drain(fromList([]int{1, 2, 3}), func(_ context.Context, n int) error {
		seen++
		if n == 2 {
			return sinkErr
		}
		return nil
	})
	if err := r.Run(context.Background()); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if seen != 2 {
		t.Errorf("sink called %d times, want 2", seen)
	}
}

func TestDrain_ClosesSource(t *testing.T) {
	closed := false
	p := FromFunc(func(context.Context) Iterator[int] {
		return &closeTrackingIter{onClose: func() { closed = true }}
	})
	r := Drain(p, func(context.Context, int) error { return nil })
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Error("expected source to be closed after the run")
	}
}

func TestFromFunc_SourceError(t *testing.T) {
	srcErr := errors.New("source failed")
	p := FromFunc(func(context.Context) Iterator[int] {
		return &failingIter{err: srcErr}
	})
	_, err := Collect(context.Background(), p)
	if !errors.Is(err, srcErr) {
		t.Fatalf("expected source error, got %v", err)
	}
}

// --- helpers ---

type failingIter struct {
	err error
}

func (it *failingIter) Next(context.Context) (int, bool, error) {
	return 0, false, it.err
}

func (it *failingIter) Close() error { return nil }

type closeTrackingIter struct {
	onClose func()
}

func (it *closeTrackingIter) Next(context.Context) (int, bool, error) {
	return 0, false, nil
}

func (it *closeTrackingIter) Close() error {
	it.onClose()
	return nil
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
