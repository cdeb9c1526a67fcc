package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/errs"
	"github.com/edgard/taskbot/internal/metrics"
)

const (
	adminID = int64(1)
	userID  = int64(42)
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var testLimits = Limits{
	MinDifficulty: 1,
	MaxDifficulty: 5,
	MaxTTL:        7 * 24 * time.Hour,
	MaxTextLength: 1000,
}

type env struct {
	db      *sqlx.DB
	dbPath  string
	store   database.Store
	clock   *clockwork.FakeClock
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	manager *Manager
	ledger  *Ledger
}

func newEnv(t *testing.T, limits Limits) *env {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "lifecycle.db")
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, nil)
	clock := clockwork.NewFakeClockAt(t0)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return &env{
		db:      db,
		dbPath:  dbPath,
		store:   store,
		clock:   clock,
		reg:     reg,
		metrics: m,
		manager: NewManager(store, NewStaticAdmins(adminID), clock, limits, m, nil),
		ledger:  NewLedger(store, clock, m, nil),
	}
}

// counter returns the value of the named counter series whose labels include
// every labelPairs name/value pair, or 0 if none was recorded.
func (e *env) counter(t *testing.T, name string, labelPairs ...string) float64 {
	t.Helper()
	families, err := e.reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for i := 0; i+1 < len(labelPairs); i += 2 {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labelPairs[i] && lp.GetValue() == labelPairs[i+1] {
						matched = true
					}
				}
				if !matched {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func (e *env) assign(t *testing.T, user int64, ttl time.Duration) *database.Task {
	t.Helper()
	task, err := e.manager.AssignTask(context.Background(), AssignParams{
		AdminID:    adminID,
		UserID:     user,
		Difficulty: 3,
		Text:       "wash dishes",
		TTL:        ttl,
	})
	if err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	return task
}

func TestAssignTask(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)

	task := e.assign(t, userID, 6*time.Hour)

	if task.Status != database.TaskActive {
		t.Errorf("Status = %q, want %q", task.Status, database.TaskActive)
	}
	if want := t0.Add(6 * time.Hour); !task.Deadline.Equal(want) {
		t.Errorf("Deadline = %v, want %v", task.Deadline, want)
	}
	if task.AssignedTo != userID || task.AssignedBy != adminID {
		t.Errorf("task = %+v, want assigned_to=%d assigned_by=%d", task, userID, adminID)
	}
	if got := e.counter(t, "taskbot_tasks_assigned_total"); got != 1 {
		t.Errorf("tasks assigned = %v, want 1", got)
	}

	active, err := e.manager.GetActiveTask(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetActiveTask() error = %v", err)
	}
	if active.ID != task.ID {
		t.Errorf("GetActiveTask() id = %d, want %d", active.ID, task.ID)
	}
}

func TestAssignTaskRejects(t *testing.T) {
	t.Parallel()

	valid := AssignParams{AdminID: adminID, UserID: userID, Difficulty: 3, Text: "wash dishes", TTL: time.Hour}

	tests := []struct {
		name   string
		mutate func(p *AssignParams)
		want   error
	}{
		{"non admin", func(p *AssignParams) { p.AdminID = 7 }, errs.ErrPermissionDenied},
		{"difficulty too low", func(p *AssignParams) { p.Difficulty = 0 }, errs.ErrInvalidArgument},
		{"difficulty too high", func(p *AssignParams) { p.Difficulty = 6 }, errs.ErrInvalidArgument},
		{"empty text", func(p *AssignParams) { p.Text = "   " }, errs.ErrInvalidArgument},
		{"text too long", func(p *AssignParams) { p.Text = strings.Repeat("x", 1001) }, errs.ErrInvalidArgument},
		{"zero ttl", func(p *AssignParams) { p.TTL = 0 }, errs.ErrInvalidArgument},
		{"negative ttl", func(p *AssignParams) { p.TTL = -time.Minute }, errs.ErrInvalidArgument},
		{"ttl above max", func(p *AssignParams) { p.TTL = 8 * 24 * time.Hour }, errs.ErrInvalidArgument},
		{"bad user", func(p *AssignParams) { p.UserID = 0 }, errs.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t, testLimits)

			p := valid
			tt.mutate(&p)
			_, err := e.manager.AssignTask(context.Background(), p)
			if !errors.Is(err, tt.want) {
				t.Fatalf("AssignTask() error = %v, want %v", err, tt.want)
			}
			if task, _ := e.store.FindActiveTaskByUser(context.Background(), p.UserID); task != nil {
				t.Errorf("task stored after rejected assignment: %+v", task)
			}
		})
	}
}

func TestAssignTaskActiveTaskExists(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)

	first := e.assign(t, userID, time.Hour)
	_, err := e.manager.AssignTask(context.Background(), AssignParams{
		AdminID: adminID, UserID: userID, Difficulty: 1, Text: "second", TTL: time.Hour,
	})
	if !errors.Is(err, errs.ErrActiveTaskExists) {
		t.Fatalf("AssignTask() error = %v, want ErrActiveTaskExists", err)
	}

	active, err := e.manager.GetActiveTask(context.Background(), userID)
	if err != nil || active.ID != first.ID {
		t.Errorf("GetActiveTask() = %v, %v; want task %d", active, err, first.ID)
	}
}

func TestGetActiveTaskNotFound(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)

	if _, err := e.manager.GetActiveTask(context.Background(), userID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("GetActiveTask() error = %v, want ErrNotFound", err)
	}
}

func TestSubmitReportBeforeDeadline(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()

	task := e.assign(t, userID, 6*time.Hour)

	e.clock.Advance(5*time.Hour + 59*time.Minute)
	done, report, err := e.manager.SubmitReport(ctx, userID, "done", "photo-1")
	if err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if done.ID != task.ID || done.Status != database.TaskCompleted {
		t.Errorf("SubmitReport() task = %+v, want task %d completed", done, task.ID)
	}
	if report.TaskID != task.ID || report.PhotoFileID != "photo-1" {
		t.Errorf("SubmitReport() report = %+v", report)
	}

	// A later sweep must not touch the completed task.
	e.clock.Advance(2 * time.Minute)
	notifier := &recordingNotifier{}
	expired, err := NewSweeper(e.store, notifier, e.clock, SweeperOptions{Message: "expired"}, e.metrics, nil).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(expired) != 0 || len(notifier.sent()) != 0 {
		t.Errorf("Sweep() expired %d tasks and sent %d notifications, want none", len(expired), len(notifier.sent()))
	}

	stored, err := e.store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if stored.Status != database.TaskCompleted {
		t.Errorf("stored status = %q, want completed", stored.Status)
	}
	if got := e.counter(t, "taskbot_reports_accepted_total"); got != 1 {
		t.Errorf("reports accepted = %v, want 1", got)
	}
}

func TestSubmitReportWithoutActiveTask(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()

	_, _, err := e.manager.SubmitReport(ctx, userID, "done", "photo-1")
	if !errors.Is(err, errs.ErrNoActiveTask) {
		t.Fatalf("SubmitReport() error = %v, want ErrNoActiveTask", err)
	}

	task := e.assign(t, userID, time.Hour)
	if _, _, err := e.manager.SubmitReport(ctx, userID, "done", "photo-1"); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if _, _, err := e.manager.SubmitReport(ctx, userID, "again", "photo-2"); !errors.Is(err, errs.ErrNoActiveTask) {
		t.Errorf("second SubmitReport() error = %v, want ErrNoActiveTask", err)
	}

	report, err := e.store.GetReportByTask(ctx, task.ID)
	if err != nil || report == nil {
		t.Fatalf("GetReportByTask() = %v, %v", report, err)
	}
	if report.PhotoFileID != "photo-1" {
		t.Errorf("stored report photo = %q, want photo-1", report.PhotoFileID)
	}
	if got := e.counter(t, "taskbot_reports_rejected_total", "reason", metrics.ReasonNoActiveTask); got != 2 {
		t.Errorf("reports rejected = %v, want 2", got)
	}
}

func TestSubmitReportRequiresPhoto(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)

	e.assign(t, userID, time.Hour)
	if _, _, err := e.manager.SubmitReport(context.Background(), userID, "done", ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("SubmitReport() error = %v, want ErrInvalidArgument", err)
	}
	if _, err := e.manager.GetActiveTask(context.Background(), userID); err != nil {
		t.Errorf("task should still be active, GetActiveTask() error = %v", err)
	}
}

func TestSubmitReportAfterExpiry(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()

	e.assign(t, userID, time.Hour)
	e.clock.Advance(time.Hour + time.Second)
	if _, err := NewSweeper(e.store, nil, e.clock, SweeperOptions{}, e.metrics, nil).Sweep(ctx); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, _, err := e.manager.SubmitReport(ctx, userID, "late", "photo-1"); !errors.Is(err, errs.ErrNoActiveTask) {
		t.Errorf("SubmitReport() error = %v, want ErrNoActiveTask", err)
	}
}

func TestSubmitReportCreditsPoints(t *testing.T) {
	t.Parallel()
	limits := testLimits
	limits.PointsPerLevel = 10
	e := newEnv(t, limits)
	ctx := context.Background()

	e.assign(t, userID, time.Hour)
	if _, _, err := e.manager.SubmitReport(ctx, userID, "done", "photo-1"); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}

	total, err := e.ledger.GetTotalPoints(ctx, userID)
	if err != nil {
		t.Fatalf("GetTotalPoints() error = %v", err)
	}
	if total != 30 {
		t.Errorf("GetTotalPoints() = %d, want 30", total)
	}
}

func TestTaskHistory(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()

	first := e.assign(t, userID, time.Hour)
	if _, _, err := e.manager.SubmitReport(ctx, userID, "", "photo"); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	second := e.assign(t, userID, time.Hour)

	history, err := e.manager.TaskHistory(ctx, userID, 10)
	if err != nil {
		t.Fatalf("TaskHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("TaskHistory() = %+v, want [%d %d]", history, second.ID, first.ID)
	}
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()
	e := newEnv(t, testLimits)
	ctx := context.Background()

	if _, err := e.manager.RegisterUser(ctx, adminID, "  Boss "); err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	u, err := e.store.GetUser(ctx, adminID)
	if err != nil || u == nil {
		t.Fatalf("GetUser() = %v, %v", u, err)
	}
	if u.Name != "Boss" || !u.IsAdmin {
		t.Errorf("GetUser() = %+v, want trimmed name and admin flag", u)
	}
}

func TestReportAndSweepRace(t *testing.T) {
	t.Parallel()

	for i := range 10 {
		e := newEnv(t, testLimits)
		ctx := context.Background()
		sweeper := NewSweeper(e.store, nil, e.clock, SweeperOptions{}, e.metrics, nil)

		e.assign(t, userID, time.Hour)
		e.clock.Advance(time.Hour)

		var (
			wg        sync.WaitGroup
			reportErr error
			expired   []database.Task
			sweepErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, reportErr = e.manager.SubmitReport(ctx, userID, "", "photo")
		}()
		go func() {
			defer wg.Done()
			expired, sweepErr = sweeper.Sweep(ctx)
		}()
		wg.Wait()

		if sweepErr != nil {
			t.Fatalf("iteration %d: Sweep() error = %v", i, sweepErr)
		}
		reportWon := reportErr == nil
		sweepWon := len(expired) == 1
		if reportWon == sweepWon {
			t.Fatalf("iteration %d: report err = %v, swept %d; want exactly one winner", i, reportErr, len(expired))
		}
		if !reportWon && !errors.Is(reportErr, errs.ErrNoActiveTask) {
			t.Fatalf("iteration %d: losing report error = %v, want ErrNoActiveTask", i, reportErr)
		}
	}
}
