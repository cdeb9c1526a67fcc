package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/taskbot/internal/logger"
)

type blockingListener struct{}

func (blockingListener) Start(ctx context.Context) { <-ctx.Done() }

type returningListener struct{}

func (returningListener) Start(context.Context) {}

type fakeRunner struct {
	started, stopped atomic.Int32
	startErr         error
}

func (r *fakeRunner) Start() error {
	r.started.Add(1)
	return r.startErr
}

func (r *fakeRunner) Stop() error {
	r.stopped.Add(1)
	return nil
}

type fakeMetrics struct{ err error }

func (m fakeMetrics) Run(ctx context.Context) error {
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return nil
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	b := NewBot(logger.Discard(), blockingListener{}, runner, fakeMetrics{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if runner.started.Load() != 1 || runner.stopped.Load() != 1 {
		t.Errorf("scheduler started %d stopped %d times, want 1 and 1", runner.started.Load(), runner.stopped.Load())
	}
}

func TestRunFailsWhenListenerStops(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	b := NewBot(logger.Discard(), returningListener{}, runner, nil)

	if err := b.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the listener stops on its own")
	}
	if runner.stopped.Load() != 1 {
		t.Errorf("scheduler stopped %d times, want 1", runner.stopped.Load())
	}
}

func TestRunPropagatesComponentErrors(t *testing.T) {
	t.Parallel()

	startErr := errors.New("bad cron expression")
	b := NewBot(logger.Discard(), blockingListener{}, &fakeRunner{startErr: startErr}, nil)
	if err := b.Run(context.Background()); !errors.Is(err, startErr) {
		t.Errorf("Run() error = %v, want %v", err, startErr)
	}

	listenErr := errors.New("address already in use")
	b = NewBot(logger.Discard(), blockingListener{}, &fakeRunner{}, fakeMetrics{err: listenErr})
	if err := b.Run(context.Background()); !errors.Is(err, listenErr) {
		t.Errorf("Run() error = %v, want %v", err, listenErr)
	}
}
