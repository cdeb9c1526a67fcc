package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgard/taskbot/internal/database"
)

type notification struct {
	userID int64
	text   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("notification context has no deadline")
	}
	n.msgs = append(n.msgs, notification{userID: userID, text: text})
	return n.err
}

func (n *recordingNotifier) sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.msgs...)
}

func TestSweepExpiresOverdueTask(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()
	notifier := &recordingNotifier{}
	sweeper := NewSweeper(e.store, notifier, e.clock, SweeperOptions{Message: "time is up"}, e.metrics, nil)

	task := e.assign(t, userID, 6*time.Hour)

	e.clock.Advance(6*time.Hour - time.Second)
	expired, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() before deadline error = %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("Sweep() before deadline expired %d tasks, want 0", len(expired))
	}

	e.clock.Advance(2 * time.Second)
	expired, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != task.ID || expired[0].Status != database.TaskExpired {
		t.Fatalf("Sweep() = %+v, want task %d expired", expired, task.ID)
	}

	sent := notifier.sent()
	if len(sent) != 1 || sent[0].userID != userID || sent[0].text != "time is up" {
		t.Errorf("notifications = %+v, want one to user %d", sent, userID)
	}

	// Expired tasks are not picked up again.
	e.clock.Advance(time.Hour)
	if expired, err := sweeper.Sweep(ctx); err != nil || len(expired) != 0 {
		t.Errorf("second Sweep() = %d tasks, %v; want none", len(expired), err)
	}
	if got := len(notifier.sent()); got != 1 {
		t.Errorf("notifications after second sweep = %d, want 1", got)
	}
	if got := e.counter(t, "taskbot_tasks_expired_total"); got != 1 {
		t.Errorf("tasks expired = %v, want 1", got)
	}
}

func TestSweepAtExactDeadline(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	sweeper := NewSweeper(e.store, nil, e.clock, SweeperOptions{}, e.metrics, nil)

	e.assign(t, userID, time.Hour)
	e.clock.Advance(time.Hour)

	expired, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(expired) != 1 {
		t.Errorf("Sweep() at deadline expired %d tasks, want 1", len(expired))
	}
}

func TestSweepManyUsers(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	notifier := &recordingNotifier{}
	sweeper := NewSweeper(e.store, notifier, e.clock, SweeperOptions{Message: "late", Concurrency: 2}, e.metrics, nil)

	for _, user := range []int64{10, 11, 12} {
		e.assign(t, user, time.Hour)
	}
	e.assign(t, 13, 3*time.Hour)

	e.clock.Advance(2 * time.Hour)
	expired, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(expired) != 3 {
		t.Fatalf("Sweep() expired %d tasks, want 3", len(expired))
	}

	got := map[int64]int{}
	for _, n := range notifier.sent() {
		got[n.userID]++
	}
	for _, user := range []int64{10, 11, 12} {
		if got[user] != 1 {
			t.Errorf("user %d notified %d times, want 1", user, got[user])
		}
	}
	if got[13] != 0 {
		t.Errorf("user 13 notified before deadline")
	}
}

func TestSweepNotificationFailure(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	notifier := &recordingNotifier{err: errors.New("blocked by user")}
	sweeper := NewSweeper(e.store, notifier, e.clock, SweeperOptions{Message: "late"}, e.metrics, nil)

	task := e.assign(t, userID, time.Hour)
	e.clock.Advance(time.Hour + time.Second)

	expired, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v, want nil despite delivery failure", err)
	}
	if len(expired) != 1 {
		t.Fatalf("Sweep() expired %d tasks, want 1", len(expired))
	}

	stored, err := e.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.Status != database.TaskExpired {
		t.Errorf("stored status = %q, want expired", stored.Status)
	}
	if got := e.counter(t, "taskbot_notification_failures_total"); got != 1 {
		t.Errorf("notification failures = %v, want 1", got)
	}
}

func TestSweepCancelledContextStillNotifies(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	notifier := &recordingNotifier{}
	sweeper := NewSweeper(e.store, notifier, e.clock, SweeperOptions{Message: "late"}, e.metrics, nil)

	e.assign(t, userID, time.Hour)
	e.clock.Advance(time.Hour + time.Second)

	expired, err := sweeper.Sweep(context.Background())
	if err != nil || len(expired) != 1 {
		t.Fatalf("Sweep() = %d, %v", len(expired), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.notifyAll(ctx, expired)
	if got := len(notifier.sent()); got != 2 {
		t.Errorf("notifications = %d, want 2", got)
	}
}
