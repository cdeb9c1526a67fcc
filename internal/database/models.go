package database

import (
	"database/sql"
	"time"
)

// TaskStatus is the lifecycle state of a task. Completed and expired are
// terminal.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskExpired   TaskStatus = "expired"
)

// ReportStatus is the review state of a report. Only pending is written by
// the bot; the others are reserved for manual review.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportRejected ReportStatus = "rejected"
)

// User is a Telegram user the bot has seen. Created on first contact, never
// deleted.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Name       string    `db:"name"`
	IsAdmin    bool      `db:"is_admin"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Task is a timed assignment for one user.
type Task struct {
	ID         int64        `db:"id"`
	AssignedTo int64        `db:"assigned_to"`
	AssignedBy int64        `db:"assigned_by"`
	Text       string       `db:"text"`
	Difficulty int          `db:"difficulty"`
	AssignedAt time.Time    `db:"assigned_at"`
	Deadline   time.Time    `db:"deadline"`
	Status     TaskStatus   `db:"status"`
	FinishedAt sql.NullTime `db:"finished_at"`
}

// Report is the photo+text submission that completed a task. Immutable once
// written.
type Report struct {
	ID          int64        `db:"id"`
	TaskID      int64        `db:"task_id"`
	UserID      int64        `db:"user_id"`
	Text        string       `db:"report_text"`
	PhotoFileID string       `db:"photo_file_id"`
	SubmittedAt time.Time    `db:"submitted_at"`
	Status      ReportStatus `db:"status"`
}

// RewardEntry is one signed point adjustment in the append-only ledger.
type RewardEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Points    int64     `db:"points"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// UserPoints is one leaderboard row.
type UserPoints struct {
	UserID int64  `db:"user_id"`
	Name   string `db:"name"`
	Total  int64  `db:"total"`
}

const taskColumns = `id, assigned_to, assigned_by, text, difficulty, assigned_at, deadline, status, finished_at`

const reportColumns = `id, task_id, user_id, report_text, photo_file_id, submitted_at, status`
