package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewExecutor_Empty(t *testing.T) {
	e := NewExecutor()
	if e.circuitBreaker != nil || e.rateLimiter != nil || e.bulkhead != nil || e.timeout != nil {
		t.Error("default executor must have no guards")
	}

	executed := false
	if err := e.Execute(context.Background(), func(context.Context) error {
		executed = true
		return nil
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("operation was not executed")
	}
}

func TestNewExecutorFromConfig(t *testing.T) {
	e := NewExecutorFromConfig(ExecutorConfig{
		RatePerSecond: 5,
		MaxConcurrent: 2,
		MaxFailures:   3,
		ResetTimeout:  time.Minute,
		Timeout:       time.Second,
	})
	if e.rateLimiter == nil || e.bulkhead == nil || e.circuitBreaker == nil || e.timeout == nil {
		t.Fatalf("expected every guard configured, got %+v", e)
	}
	if e.CircuitBreaker() != e.circuitBreaker {
		t.Error("CircuitBreaker() must expose the configured breaker")
	}
	if got := e.timeout.Duration(); got != time.Second {
		t.Errorf("expected 1s timeout, got %v", got)
	}

	bare := NewExecutorFromConfig(ExecutorConfig{})
	if bare.CircuitBreaker() != nil || bare.timeout != nil {
		t.Error("zero config must not add guards")
	}
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor(WithTimeout(20 * time.Millisecond))

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestExecutor_NoRetryOnFailure(t *testing.T) {
	e := NewExecutorFromConfig(ExecutorConfig{MaxFailures: 10, Timeout: time.Second})

	var calls int32
	cause := errors.New("upstream 503")
	err := e.Execute(context.Background(), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
}

func TestExecutor_CircuitBreakerOpens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	e := NewExecutor(WithCircuitBreaker(cb))
	fail := func(context.Context) error { return errors.New("boom") }

	_ = e.Execute(context.Background(), fail)
	_ = e.Execute(context.Background(), fail)

	if err := e.Execute(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestExecutor_RateLimiterRejects(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	e := NewExecutor(WithRateLimiter(rl))
	ok := func(context.Context) error { return nil }

	if err := e.Execute(context.Background(), ok); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := e.Execute(context.Background(), ok); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestExecutor_BulkheadRejectsWhenFull(t *testing.T) {
	e := NewExecutor(WithBulkhead(NewBulkhead(BulkheadConfig{MaxConcurrent: 1})))

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = e.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := e.Execute(context.Background(), func(context.Context) error { return nil })
	close(release)
	wg.Wait()

	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("expected ErrBulkheadFull, got %v", err)
	}
}

func TestExecutor_RateLimitCheckedBeforeCircuit(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	e := NewExecutor(WithCircuitBreaker(cb), WithRateLimiter(rl))

	_ = e.Execute(context.Background(), func(context.Context) error { return nil })
	err := e.Execute(context.Background(), func(context.Context) error { return errors.New("never runs") })
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Error("rate-limited calls must not count against the circuit")
	}
}
