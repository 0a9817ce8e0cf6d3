package engine

import (
	"context"
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult is the internal type used to pass evaluation results through channels.
type evalResult struct {
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns an error if the
// evaluation exceeds timeout or ctx is done first.
//
// On timeout the goroutine may still be running; the caller marks its state
// stopped so that it makes no further registry calls.
func waitWithTimeout(ctx context.Context, ch <-chan evalResult, timeout time.Duration) (evalResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		return evalResult{}, fmt.Errorf("evaluation timed out after %s: %w", timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return evalResult{}, fmt.Errorf("evaluation cancelled: %w", ctx.Err())
	}
}
