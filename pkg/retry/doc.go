// Package retry provides backoff and retry logic for transient failures.
//
// Pauses are taken on a clockwork.Clock so callers can drive them with a
// fake clock in tests.
//
//	err := retry.Do(ctx, fetchPage, retry.Config{
//		MaxAttempts: 10,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:  30 * time.Second,
//			MaxDelay:   5 * time.Minute,
//			Multiplier: 2.0,
//		},
//		RetryIf: retry.Always,
//	})
//	if errors.Is(err, retry.ErrExhausted) {
//		// give up on this page
//	}
package retry
