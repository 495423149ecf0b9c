package providers

import (
	"context"
	"fmt"
	"time"
)

// pollTask calls check until it reports done, the attempts run out or ctx ends.
func pollTask[T any](ctx context.Context, o options, check func(ctx context.Context, attempt int) (T, bool, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		v, done, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		if attempt < o.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(o.pollInterval):
			}
		}
	}
	return zero, fmt.Errorf("task timeout after %d attempts", o.maxAttempts)
}
