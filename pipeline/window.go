package pipeline

import (
	"context"
	"time"
)

// TumblingWindow groups values into non-overlapping windows of the
// given duration. A window is emitted when its timer expires with at
// least one value in it, or when the source is exhausted mid-window.
// Quiet periods produce no output at all, so a downstream flush only
// ever sees non-empty batches.
func TumblingWindow[T any](p *Pipeline[T], duration time.Duration) *Pipeline[[]T] {
	return &Pipeline[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			source := p.create(ctx)
			feedCtx, cancel := context.WithCancel(ctx)

			ch := make(chan result[T], 1)
			go feed(feedCtx, source, ch)

			return &windowIter[T]{
				ch:       ch,
				duration: duration,
				cancel:   cancel,
				closer:   source.Close,
			}
		},
	}
}

// feed pumps the source into ch until exhaustion or cancellation. The
// channel close is the exhaustion signal; errors travel in-band.
func feed[T any](ctx context.Context, source Iterator[T], ch chan<- result[T]) {
	defer close(ch)
	for {
		val, ok, err := source.Next(ctx)
		if err != nil {
			select {
			case ch <- result[T]{err: err}:
			case <-ctx.Done():
			}
			return
		}
		if !ok {
			return
		}
		select {
		case ch <- result[T]{val: val, ok: true}:
		case <-ctx.Done():
			return
		}
	}
}

type windowIter[T any] struct {
	ch       <-chan result[T]
	duration time.Duration
	cancel   context.CancelFunc
	closer   func() error
	done     bool
}

func (it *windowIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.done {
		return nil, false, nil
	}

	var window []T
	timer := time.NewTimer(it.duration)
	defer timer.Stop()

	for {
		select {
		case r, open := <-it.ch:
			if !open {
				it.done = true
				if len(window) > 0 {
					return window, true, nil
				}
				return nil, false, nil
			}
			if r.err != nil {
				return nil, false, r.err
			}
			window = append(window, r.val)

		case <-timer.C:
			if len(window) > 0 {
				return window, true, nil
			}
			// Nothing arrived this period, wait out the next one.
			timer.Reset(it.duration)

		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (it *windowIter[T]) Close() error {
	it.cancel()
	return it.closer()
}
