package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/lifecycle"
)

// TaskService is the task lifecycle as seen by the handlers.
type TaskService interface {
	RegisterUser(ctx context.Context, userID int64, name string) (*database.User, error)
	AssignTask(ctx context.Context, p lifecycle.AssignParams) (*database.Task, error)
	GetActiveTask(ctx context.Context, userID int64) (*database.Task, error)
	SubmitReport(ctx context.Context, userID int64, text, photoRef string) (*database.Task, *database.Report, error)
	TaskHistory(ctx context.Context, userID int64, limit int) ([]database.Task, error)
}

// PointsService is the reward ledger as seen by the handlers.
type PointsService interface {
	CreditPoints(ctx context.Context, userID, amount int64, reason string) error
	GetTotalPoints(ctx context.Context, userID int64) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]database.UserPoints, error)
}

var (
	_ TaskService   = (*lifecycle.Manager)(nil)
	_ PointsService = (*lifecycle.Ledger)(nil)
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Tasks    TaskService
	Points   PointsService
	Admins   lifecycle.AdminSource
	Notifier lifecycle.Notifier
	// Reports tracks who is in report mode. RegisterAllCommands creates it
	// when nil.
	Reports *ReportModes
}
