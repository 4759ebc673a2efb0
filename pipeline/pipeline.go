package pipeline

import "context"

// Iterator is a pull-based source of values.
type Iterator[T any] interface {
	// Next returns the next value. ok is false once the source is
	// exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases resources held by the iterator.
	Close() error
}

// Pipeline is a lazy chain of pull-based stages. Nothing runs until a
// terminal starts pulling.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// FromFunc builds a pipeline from an iterator factory. The factory runs
// once per execution, so the same pipeline value can back repeated runs.
func FromFunc[T any](fn func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: fn}
}

// Runnable is a pipeline bound to a sink, ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run pulls until the source is exhausted, the sink fails or ctx is
// cancelled.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// Drain binds a sink to the pipeline. Every pulled value is handed to
// the sink; a sink error stops the run and is returned as is.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			iter := p.create(ctx)
			defer iter.Close()
			for {
				val, ok, err := iter.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := sink(ctx, val); err != nil {
					return err
				}
			}
		},
	}
}

// Collect pulls every value into a slice. On error the values pulled so
// far are returned alongside it.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	iter := p.create(ctx)
	defer iter.Close()
	var out []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, val)
	}
}

// result carries a value or error through the channel between a window
// feeder goroutine and its iterator.
type result[T any] struct {
	val T
	ok  bool
	err error
}
