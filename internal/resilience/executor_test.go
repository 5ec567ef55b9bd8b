package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryableClassifier(err error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
	}, nil)

	calls := 0
	err := executor.Execute(context.Background(), "classify", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, retryableClassifier)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestExecuteReturnsLastErrorAfterExhaustion(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
	}, nil)

	boom := errors.New("still broken")
	calls := 0
	err := executor.Execute(context.Background(), "classify", func(context.Context) error {
		calls++
		return boom
	}, retryableClassifier)
	if !errors.Is(err, boom) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	executor := NewExecutor(Config{RetryMaxAttempts: 5, RetryInitialBackoff: time.Millisecond}, nil)

	calls := 0
	err := executor.Execute(context.Background(), "classify", func(context.Context) error {
		calls++
		return errors.New("bad request")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    10,
		RetryInitialBackoff: time.Hour,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := executor.Execute(ctx, "classify", func(context.Context) error {
		calls++
		return errors.New("transient")
	}, retryableClassifier)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected retry loop to stop after cancel, got %d calls", calls)
	}
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	executor := NewExecutor(Config{
		RetryMaxAttempts:    1,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}, nil)

	boom := errors.New("api down")
	calls := 0
	fail := func(context.Context) error {
		calls++
		return boom
	}
	for i := 0; i < 2; i++ {
		if err := executor.Execute(context.Background(), "classify", fail, retryableClassifier); !errors.Is(err, boom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}

	err := executor.Execute(context.Background(), "classify", fail, retryableClassifier)
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open breaker should not invoke the callback, got %d calls", calls)
	}
}
