package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("connection reset")
	errPermanent = errors.New("forbidden")
)

func newTestBreaker(maxFailures, attempts int) *Breaker {
	return New(Config{
		Name:        "test",
		MaxFailures: maxFailures,
		Cooldown:    time.Hour,
		Attempts:    attempts,
		RetryDelay:  time.Millisecond,
		Permanent:   func(err error) bool { return errors.Is(err, errPermanent) },
	}, nil)
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(10, 3)

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want closed", got)
	}
}

func TestExecuteReturnsLastError(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(10, 2)

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Execute() error = %v, want %v", err, errTransient)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestExecutePermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(2, 5)

	calls := 0
	for range 4 {
		err := b.Execute(context.Background(), func(context.Context) error {
			calls++
			return errPermanent
		})
		if !errors.Is(err, errPermanent) {
			t.Fatalf("Execute() error = %v, want %v", err, errPermanent)
		}
	}
	if calls != 4 {
		t.Errorf("calls = %d, want one per Execute", calls)
	}
	if got := b.State(); got != "closed" {
		t.Errorf("State() = %q, want closed after permanent errors", got)
	}
}

func TestExecuteOpensCircuit(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(2, 5)

	calls := 0
	op := func(context.Context) error {
		calls++
		return errTransient
	}

	err := b.Execute(context.Background(), op)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() error = %v, want ErrCircuitOpen once the breaker trips", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 before the circuit opened", calls)
	}
	if got := b.State(); got != "open" {
		t.Errorf("State() = %q, want open", got)
	}

	err = b.Execute(context.Background(), op)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit error = %v, want ErrCircuitOpen", err)
	}
	if calls != 2 {
		t.Errorf("operation called %d times while the circuit was open", calls-2)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()
	b := New(Config{Name: "defaults"}, nil)

	if b.cfg.MaxFailures != 5 || b.cfg.Attempts != 1 || b.cfg.Cooldown != time.Minute {
		t.Errorf("cfg = %+v, want defaults applied", b.cfg)
	}
	if b.cfg.Permanent(errPermanent) {
		t.Error("default Permanent should report false")
	}
}
