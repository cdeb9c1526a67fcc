package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/errs"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
)

// Limits bounds the parameters accepted by AssignTask and the reward credited
// on completion.
type Limits struct {
	MinDifficulty  int
	MaxDifficulty  int
	MaxTTL         time.Duration
	MaxTextLength  int
	PointsPerLevel int64
}

// AssignParams are the inputs of AssignTask.
type AssignParams struct {
	AdminID    int64
	UserID     int64 `validate:"gt=0"`
	Difficulty int
	Text       string
	TTL        time.Duration
}

// Manager owns the task state machine for request-driven operations.
// It holds no mutable state besides the Store, so calls for different users
// never contend.
type Manager struct {
	store    database.Store
	admins   AdminSource
	clock    clockwork.Clock
	limits   Limits
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil clock means the real clock; nil
// metrics record nothing.
func NewManager(
	store database.Store,
	admins AdminSource,
	clock clockwork.Clock,
	limits Limits,
	m *metrics.Metrics,
	log *slog.Logger,
) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		store:    store,
		admins:   admins,
		clock:    clock,
		limits:   limits,
		validate: validator.New(),
		metrics:  m,
		logger:   log.With("component", "task_manager"),
	}
}

// RegisterUser records a user on first contact, refreshing the display name
// and admin flag on later calls.
func (m *Manager) RegisterUser(ctx context.Context, userID int64, name string) (*database.User, error) {
	user := &database.User{
		TelegramID: userID,
		Name:       strings.TrimSpace(name),
		IsAdmin:    m.admins.IsAdmin(ctx, userID),
	}
	if err := m.store.UpsertUser(ctx, user); err != nil {
		return nil, storeError("register user", err)
	}
	return user, nil
}

// AssignTask creates an active task for p.UserID with deadline now+TTL.
// Fails with PermissionDenied for non-admins, InvalidArgument for bad
// parameters and ActiveTaskExists if the user already has an active task.
func (m *Manager) AssignTask(ctx context.Context, p AssignParams) (*database.Task, error) {
	log := m.logger.With("admin_id", p.AdminID, "user_id", p.UserID)

	if !m.admins.IsAdmin(ctx, p.AdminID) {
		log.WarnContext(ctx, "Non-admin attempted to assign a task")
		return nil, errs.PermissionDenied(fmt.Sprintf("user %d is not an admin", p.AdminID))
	}

	p.Text = strings.TrimSpace(p.Text)
	if err := m.validateAssign(p); err != nil {
		log.InfoContext(ctx, "Rejected task assignment", "error", err)
		return nil, err
	}

	now := m.clock.Now().UTC()
	task := &database.Task{
		AssignedTo: p.UserID,
		AssignedBy: p.AdminID,
		Text:       p.Text,
		Difficulty: p.Difficulty,
		AssignedAt: now,
		Deadline:   now.Add(p.TTL),
	}
	if err := m.store.CreateTask(ctx, task); err != nil {
		if errors.Is(err, errs.ErrActiveTaskExists) {
			log.InfoContext(ctx, "User already has an active task")
		}
		return nil, storeError("create task", err)
	}

	m.metrics.TaskAssigned()
	log.InfoContext(ctx, "Task assigned", "task_id", task.ID, "difficulty", task.Difficulty, "deadline", task.Deadline)
	return task, nil
}

func (m *Manager) validateAssign(p AssignParams) error {
	if err := m.validate.Struct(p); err != nil {
		return errs.InvalidArgument("target user id must be positive", err)
	}
	difficultyTag := fmt.Sprintf("min=%d,max=%d", m.limits.MinDifficulty, m.limits.MaxDifficulty)
	if err := m.validate.Var(p.Difficulty, difficultyTag); err != nil {
		return errs.InvalidArgument(fmt.Sprintf("difficulty must be between %d and %d",
			m.limits.MinDifficulty, m.limits.MaxDifficulty), err)
	}
	if err := m.validate.Var(p.Text, "required"); err != nil {
		return errs.InvalidArgument("task text is empty", err)
	}
	if m.limits.MaxTextLength > 0 {
		if err := m.validate.Var(p.Text, fmt.Sprintf("max=%d", m.limits.MaxTextLength)); err != nil {
			return errs.InvalidArgument(fmt.Sprintf("task text is longer than %d characters", m.limits.MaxTextLength), err)
		}
	}
	if p.TTL <= 0 {
		return errs.InvalidArgumentf("ttl must be positive, got %s", p.TTL)
	}
	if m.limits.MaxTTL > 0 && p.TTL > m.limits.MaxTTL {
		return errs.InvalidArgumentf("ttl %s exceeds maximum %s", p.TTL, m.limits.MaxTTL)
	}
	return nil
}

// GetActiveTask returns the user's active task or NotFound.
func (m *Manager) GetActiveTask(ctx context.Context, userID int64) (*database.Task, error) {
	task, err := m.store.FindActiveTaskByUser(ctx, userID)
	if err != nil {
		return nil, storeError("find active task", err)
	}
	if task == nil {
		return nil, errs.NotFound(fmt.Sprintf("user %d has no active task", userID))
	}
	return task, nil
}

// SubmitReport stores a report against the user's active task and completes
// it. Fails with NoActiveTask when there is nothing active, including when the
// sweeper expired the task first; no report row is written in that case.
func (m *Manager) SubmitReport(ctx context.Context, userID int64, text, photoRef string) (*database.Task, *database.Report, error) {
	log := m.logger.With("user_id", userID)

	if strings.TrimSpace(photoRef) == "" {
		m.metrics.ReportRejected(metrics.ReasonInvalid)
		return nil, nil, errs.InvalidArgumentf("report requires a photo")
	}

	report := &database.Report{
		UserID:      userID,
		Text:        strings.TrimSpace(text),
		PhotoFileID: photoRef,
		SubmittedAt: m.clock.Now().UTC(),
	}
	task, err := m.store.CompleteTaskWithReport(ctx, report, m.limits.PointsPerLevel)
	if err != nil {
		if errors.Is(err, errs.ErrNoActiveTask) {
			m.metrics.ReportRejected(metrics.ReasonNoActiveTask)
			log.InfoContext(ctx, "Report submitted without an active task")
		}
		return nil, nil, storeError("complete task", err)
	}

	m.metrics.ReportAccepted()
	if m.limits.PointsPerLevel > 0 {
		m.metrics.LedgerEntryAdded()
	}
	log.InfoContext(ctx, "Report accepted", "task_id", task.ID, "report_id", report.ID)
	return task, report, nil
}

// TaskHistory returns the user's most recent tasks, newest first.
func (m *Manager) TaskHistory(ctx context.Context, userID int64, limit int) ([]database.Task, error) {
	tasks, err := m.store.ListTasksByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	return tasks, nil
}
