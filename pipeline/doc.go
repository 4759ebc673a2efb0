// Package pipeline provides a small pull-based streaming core used for
// background batch work, most prominently the message archiver.
//
// Pipelines are lazy. No work happens until values are pulled via
// Drain or Collect; each stage pulls from the previous one on demand,
// which gives natural backpressure without explicit flow control.
//
// A typical run drains a channel-backed source into timed windows:
//
//	src := pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[Item] {
//	    return newQueueIter(ch)
//	})
//	windows := pipeline.TumblingWindow(src, 2*time.Second)
//	pipeline.Drain(windows, flush).Run(ctx)
package pipeline
