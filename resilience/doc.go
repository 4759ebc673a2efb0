// Package resilience provides retry with configurable backoff.
//
// Target reconnects are the main consumer: they retry without an attempt
// cap on a fixed schedule and classify errors as retryable or fatal via
// RetryIf.
//
//	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
//	    MaxAttempts: resilience.UnlimitedAttempts,
//	    Schedule:    func(attempt int) time.Duration { return 3 * time.Second },
//	    RetryIf:     func(err error) bool { return !errors.Is(err, errAborted) },
//	}, dial)
package resilience
