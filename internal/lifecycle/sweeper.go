package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
)

const (
	defaultExpiredMessage    = "Task expired"
	defaultNotifyTimeout     = 10 * time.Second
	defaultNotifyConcurrency = 4
)

// SweeperOptions configures expiry notifications.
type SweeperOptions struct {
	// Message is sent to the assignee of every expired task. Defaults to
	// "Task expired".
	Message string
	// NotifyTimeout bounds each delivery attempt.
	NotifyTimeout time.Duration
	// Concurrency limits parallel deliveries within one tick.
	Concurrency int
}

// Sweeper expires active tasks whose deadline has passed and notifies their
// assignees. It runs on its own schedule and shares nothing with request
// handling except the Store.
type Sweeper struct {
	store    database.Store
	notifier Notifier
	clock    clockwork.Clock
	opts     SweeperOptions
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewSweeper(
	store database.Store,
	notifier Notifier,
	clock clockwork.Clock,
	opts SweeperOptions,
	m *metrics.Metrics,
	log *slog.Logger,
) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	if opts.Message == "" {
		opts.Message = defaultExpiredMessage
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultNotifyConcurrency
	}
	return &Sweeper{
		store:    store,
		notifier: notifier,
		clock:    clock,
		opts:     opts,
		metrics:  m,
		logger:   log.With("component", "deadline_sweeper"),
	}
}

// Sweep runs one tick: every active task with deadline <= now is moved to
// expired in a single Store call, then each assignee is notified. The
// returned tasks are exactly the ones this tick expired. Notification
// failures are logged and never fail the tick; the status change is already
// durable by then.
func (s *Sweeper) Sweep(ctx context.Context) ([]database.Task, error) {
	start := s.clock.Now()
	defer func() { s.metrics.ObserveSweep(s.clock.Since(start)) }()

	expired, err := s.store.ExpireOverdueTasks(ctx, start)
	if err != nil {
		return nil, storeError("expire overdue tasks", err)
	}
	if len(expired) == 0 {
		s.logger.DebugContext(ctx, "No overdue tasks")
		return nil, nil
	}

	s.metrics.TasksExpired(len(expired))
	s.logger.InfoContext(ctx, "Expired overdue tasks", "count", len(expired))

	s.notifyAll(ctx, expired)
	return expired, nil
}

func (s *Sweeper) notifyAll(ctx context.Context, tasks []database.Task) {
	if s.notifier == nil {
		return
	}

	// Deliveries outlive a cancelled tick context but each one is bounded.
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, task := range tasks {
		g.Go(func() error {
			nctx, cancel := context.WithTimeout(base, s.opts.NotifyTimeout)
			defer cancel()

			if err := s.notifier.Notify(nctx, task.AssignedTo, s.opts.Message); err != nil {
				s.metrics.NotificationFailed()
				s.logger.WarnContext(ctx, "Failed to deliver expiry notification",
					"task_id", task.ID, "user_id", task.AssignedTo, "error", err)
				return nil
			}
			s.logger.DebugContext(ctx, "Expiry notification delivered", "task_id", task.ID, "user_id", task.AssignedTo)
			return nil
		})
	}
	_ = g.Wait()
}
