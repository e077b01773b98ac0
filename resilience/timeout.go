package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Timeout bounds the duration of one call. The operation must honor ctx.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a timeout of d. A non-positive d falls back to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the configured timeout.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op with a deadline. When this timeout, and not a deadline
// inherited from ctx, cut the call short, the error matches ErrTimeout.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeoutCause(ctx, t.d, ErrTimeout)
	defer cancel()

	err := op(ctx)
	if err != nil && errors.Is(context.Cause(ctx), ErrTimeout) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, t.d, err)
	}
	return err
}
