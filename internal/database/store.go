package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/errs"
	"github.com/edgard/taskbot/internal/logger"
)

// Store defines the persistence contract for users, tasks, reports and the
// reward ledger. Every method accepts a context for cancellation and
// timeouts. Task status transitions are compare-and-set operations on
// status = 'active' executed as single conditional statements.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// UpsertUser inserts a user or refreshes its name and admin flag.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by Telegram ID. Returns nil, nil if not found.
	GetUser(ctx context.Context, telegramID int64) (*User, error)

	// CreateTask inserts an active task. Fails with errs.ErrActiveTaskExists
	// if the assignee already has an active task.
	CreateTask(ctx context.Context, task *Task) error

	// GetTask retrieves a task by ID. Fails with errs.ErrNotFound.
	GetTask(ctx context.Context, taskID int64) (*Task, error)

	// FindActiveTaskByUser returns the user's active task, or nil, nil.
	FindActiveTaskByUser(ctx context.Context, userID int64) (*Task, error)

	// ListTasksByUser returns the user's most recent tasks, newest first.
	ListTasksByUser(ctx context.Context, userID int64, limit int) ([]Task, error)

	// CompleteTaskWithReport moves the submitter's active task to completed,
	// stores the report and, when pointsPerLevel > 0, credits
	// difficulty*pointsPerLevel points, all in one transaction. Fails with
	// errs.ErrNoActiveTask when there is no active task to complete.
	CompleteTaskWithReport(ctx context.Context, report *Report, pointsPerLevel int64) (*Task, error)

	// ExpireOverdueTasks moves every active task with deadline <= now to
	// expired and returns exactly the tasks this call transitioned.
	ExpireOverdueTasks(ctx context.Context, now time.Time) ([]Task, error)

	// GetReportByTask returns the report that completed a task, or nil, nil.
	GetReportByTask(ctx context.Context, taskID int64) (*Report, error)

	// AddRewardEntry appends a ledger entry.
	AddRewardEntry(ctx context.Context, entry *RewardEntry) error

	// SumPoints returns the sum of a user's ledger entries, 0 if none.
	SumPoints(ctx context.Context, userID int64) (int64, error)

	// TopPoints returns users ordered by total points, highest first.
	TopPoints(ctx context.Context, limit int) ([]UserPoints, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func (s *sqlxStore) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction for %s: %w", op, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction for %s: %w", op, err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// UpsertUser inserts a new user or updates name and admin flag of an
// existing one. CreatedAt is preserved on update.
func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot save nil user")
	}
	if user.TelegramID == 0 {
		return fmt.Errorf("user must have a non-zero telegram_id")
	}

	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	query := `
        INSERT INTO users (telegram_id, name, is_admin, created_at, updated_at)
        VALUES (:telegram_id, :name, :is_admin, :created_at, :updated_at)
        ON CONFLICT (telegram_id) DO UPDATE SET
            name = excluded.name,
            is_admin = excluded.is_admin,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "user_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to save user %d: %w", user.TelegramID, err)
	}

	s.logger.DebugContext(ctx, "User saved", "user_id", user.TelegramID, "is_admin", user.IsAdmin)
	return nil
}

// GetUser retrieves a user by Telegram ID. Returns nil, nil if not found.
func (s *sqlxStore) GetUser(ctx context.Context, telegramID int64) (*User, error) {
	var user User
	query := `SELECT telegram_id, name, is_admin, created_at, updated_at FROM users WHERE telegram_id = ?`

	err := s.db.GetContext(ctx, &user, query, telegramID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "user_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}
	return &user, nil
}

// CreateTask inserts an active task after checking, in the same transaction,
// that the assignee has no other active task. The partial unique index on
// tasks(assigned_to) WHERE status = 'active' backs the check.
func (s *sqlxStore) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("cannot save nil task")
	}
	if task.AssignedTo == 0 {
		return fmt.Errorf("task must have a non-zero assigned_to")
	}
	if task.Deadline.IsZero() || task.AssignedAt.IsZero() {
		return fmt.Errorf("task must have assigned_at and deadline")
	}

	task.Status = TaskActive
	task.AssignedAt = utc(task.AssignedAt)
	task.Deadline = utc(task.Deadline)
	task.FinishedAt = sql.NullTime{}

	err := s.withTx(ctx, "create_task", func(tx *sqlx.Tx) error {
		var existing int64
		err := tx.GetContext(ctx, &existing,
			`SELECT id FROM tasks WHERE assigned_to = ? AND status = 'active' LIMIT 1`, task.AssignedTo)
		switch {
		case err == nil:
			return errs.ActiveTaskExists(fmt.Sprintf("user %d already has active task %d", task.AssignedTo, existing))
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check active task for user %d: %w", task.AssignedTo, err)
		}

		query := `
            INSERT INTO tasks (assigned_to, assigned_by, text, difficulty, assigned_at, deadline, status)
            VALUES (:assigned_to, :assigned_by, :text, :difficulty, :assigned_at, :deadline, :status);
        `
		result, err := tx.NamedExecContext(ctx, query, task)
		if err != nil {
			return fmt.Errorf("failed to insert task for user %d: %w", task.AssignedTo, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read task id: %w", err)
		}
		task.ID = id
		return nil
	})
	if err != nil {
		if !errors.Is(err, errs.ErrActiveTaskExists) {
			s.logger.ErrorContext(ctx, "Error creating task", "user_id", task.AssignedTo, "error", err)
		}
		return err
	}

	s.logger.DebugContext(ctx, "Task created", "task_id", task.ID, "user_id", task.AssignedTo, "deadline", task.Deadline)
	return nil
}

// GetTask retrieves a task by ID.
func (s *sqlxStore) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	var task Task
	err := s.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errs.NotFound(fmt.Sprintf("task %d not found", taskID))
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting task", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}
	return &task, nil
}

// FindActiveTaskByUser returns the user's active task, or nil, nil.
func (s *sqlxStore) FindActiveTaskByUser(ctx context.Context, userID int64) (*Task, error) {
	var task Task
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ? AND status = 'active' ORDER BY id LIMIT 1`

	err := s.db.GetContext(ctx, &task, query, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error finding active task", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to find active task for user %d: %w", userID, err)
	}
	return &task, nil
}

// ListTasksByUser returns up to limit tasks for the user, newest first.
func (s *sqlxStore) ListTasksByUser(ctx context.Context, userID int64, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}

	var tasks []Task
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE assigned_to = ? ORDER BY id DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &tasks, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error listing tasks", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list tasks for user %d: %w", userID, err)
	}
	return tasks, nil
}

// CompleteTaskWithReport performs the active -> completed transition as one
// conditional UPDATE, then writes the report and the optional reward entry.
// If the UPDATE matches nothing (no active task, or the sweeper won the
// race) nothing is written.
func (s *sqlxStore) CompleteTaskWithReport(ctx context.Context, report *Report, pointsPerLevel int64) (*Task, error) {
	if report == nil {
		return nil, fmt.Errorf("cannot save nil report")
	}
	if report.UserID == 0 {
		return nil, fmt.Errorf("report must have a non-zero user_id")
	}
	if report.SubmittedAt.IsZero() {
		return nil, fmt.Errorf("report must have a non-zero submitted_at")
	}
	report.SubmittedAt = utc(report.SubmittedAt)
	report.Status = ReportPending

	var task Task
	err := s.withTx(ctx, "complete_task", func(tx *sqlx.Tx) error {
		var taskID int64
		err := tx.GetContext(ctx, &taskID, `
            UPDATE tasks SET status = 'completed', finished_at = ?
            WHERE assigned_to = ? AND status = 'active'
            RETURNING id`, report.SubmittedAt, report.UserID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return errs.NoActiveTask(fmt.Sprintf("user %d has no active task", report.UserID))
		case err != nil:
			return fmt.Errorf("failed to complete task for user %d: %w", report.UserID, err)
		}

		if err := tx.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("failed to reload task %d: %w", taskID, err)
		}

		report.TaskID = taskID
		result, err := tx.NamedExecContext(ctx, `
            INSERT INTO reports (task_id, user_id, report_text, photo_file_id, submitted_at, status)
            VALUES (:task_id, :user_id, :report_text, :photo_file_id, :submitted_at, :status);`, report)
		if err != nil {
			return fmt.Errorf("failed to insert report for task %d: %w", taskID, err)
		}
		if report.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read report id: %w", err)
		}

		if pointsPerLevel > 0 {
			entry := &RewardEntry{
				UserID:    report.UserID,
				Points:    int64(task.Difficulty) * pointsPerLevel,
				Reason:    fmt.Sprintf("task #%d completed", taskID),
				CreatedAt: report.SubmittedAt,
			}
			if err := insertRewardEntry(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errs.ErrNoActiveTask) {
			s.logger.ErrorContext(ctx, "Error completing task", "user_id", report.UserID, "error", err)
		}
		return nil, err
	}

	s.logger.DebugContext(ctx, "Task completed with report",
		"task_id", task.ID, "user_id", report.UserID, "report_id", report.ID)
	return &task, nil
}

// ExpireOverdueTasks transitions all overdue active tasks in one UPDATE and
// returns them. A task completed concurrently no longer matches
// status = 'active' and is left alone.
func (s *sqlxStore) ExpireOverdueTasks(ctx context.Context, now time.Time) ([]Task, error) {
	now = utc(now)

	var tasks []Task
	err := s.withTx(ctx, "expire_tasks", func(tx *sqlx.Tx) error {
		var ids []int64
		err := tx.SelectContext(ctx, &ids, `
            UPDATE tasks SET status = 'expired', finished_at = ?
            WHERE status = 'active' AND deadline <= ?
            RETURNING id`, now, now)
		if err != nil {
			return fmt.Errorf("failed to expire overdue tasks: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		query, args, err := sqlx.In(`SELECT `+taskColumns+` FROM tasks WHERE id IN (?) ORDER BY id`, ids)
		if err != nil {
			return fmt.Errorf("failed to build expired task query: %w", err)
		}
		if err := tx.SelectContext(ctx, &tasks, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to load expired tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error expiring overdue tasks", "error", err)
		return nil, err
	}

	if len(tasks) > 0 {
		s.logger.DebugContext(ctx, "Expired overdue tasks", "count", len(tasks))
	}
	return tasks, nil
}

// GetReportByTask returns the report that completed a task, or nil, nil.
func (s *sqlxStore) GetReportByTask(ctx context.Context, taskID int64) (*Report, error) {
	var report Report
	err := s.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM reports WHERE task_id = ?`, taskID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting report", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("failed to get report for task %d: %w", taskID, err)
	}
	return &report, nil
}

// AddRewardEntry appends a ledger entry.
func (s *sqlxStore) AddRewardEntry(ctx context.Context, entry *RewardEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil reward entry")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = utc(entry.CreatedAt)

	if err := insertRewardEntry(ctx, s.db, entry); err != nil {
		s.logger.ErrorContext(ctx, "Error adding reward entry", "user_id", entry.UserID, "error", err)
		return err
	}

	s.logger.DebugContext(ctx, "Reward entry added", "user_id", entry.UserID, "points", entry.Points)
	return nil
}

func insertRewardEntry(ctx context.Context, ext sqlx.ExtContext, entry *RewardEntry) error {
	result, err := sqlx.NamedExecContext(ctx, ext, `
        INSERT INTO rewards (user_id, points, reason, created_at)
        VALUES (:user_id, :points, :reason, :created_at);`, entry)
	if err != nil {
		return fmt.Errorf("failed to insert reward entry for user %d: %w", entry.UserID, err)
	}
	if entry.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read reward entry id: %w", err)
	}
	return nil
}

// SumPoints returns the sum of a user's ledger entries.
func (s *sqlxStore) SumPoints(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(points), 0) FROM rewards WHERE user_id = ?`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error summing points", "user_id", userID, "error", err)
		return 0, fmt.Errorf("failed to sum points for user %d: %w", userID, err)
	}
	return total, nil
}

// TopPoints returns up to limit users ordered by total points.
func (s *sqlxStore) TopPoints(ctx context.Context, limit int) ([]UserPoints, error) {
	if limit <= 0 {
		limit = 10
	}

	var rows []UserPoints
	query := `
        SELECT r.user_id AS user_id, COALESCE(u.name, '') AS name, SUM(r.points) AS total
        FROM rewards r
        LEFT JOIN users u ON u.telegram_id = r.user_id
        GROUP BY r.user_id
        ORDER BY total DESC, r.user_id ASC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting leaderboard", "error", err)
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return rows, nil
}
