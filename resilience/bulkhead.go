package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of calls allowed at once.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long a call may queue for a slot. Zero fails fast.
	MaxWait time.Duration
}

// Bulkhead bounds concurrent calls to a dependency.
type Bulkhead struct {
	sem      *semaphore.Weighted
	capacity int
	maxWait  time.Duration

	active   atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		sem:      semaphore.NewWeighted(int64(config.MaxConcurrent)),
		capacity: config.MaxConcurrent,
		maxWait:  config.MaxWait,
	}
}

// Execute runs op in a free slot, queueing up to MaxWait for one.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.sem.Release(1)

	b.active.Add(1)
	defer b.active.Add(-1)
	return op(ctx)
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		return nil
	}
	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	return nil
}

// BulkheadStats is a snapshot of bulkhead usage.
type BulkheadStats struct {
	Active   int
	Capacity int
	Rejected int64
}

// Stats returns current usage.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		Active:   int(b.active.Load()),
		Capacity: b.capacity,
		Rejected: b.rejected.Load(),
	}
}
