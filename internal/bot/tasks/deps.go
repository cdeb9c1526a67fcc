// Package tasks implements the periodic jobs run by the bot scheduler.
package tasks

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/lifecycle"
)

// Sweeper is the part of lifecycle.Sweeper the deadline job needs.
type Sweeper interface {
	Sweep(ctx context.Context) ([]database.Task, error)
}

var _ Sweeper = (*lifecycle.Sweeper)(nil)

// TaskDeps contains the dependencies shared by scheduled jobs.
type TaskDeps struct {
	Logger  *slog.Logger
	Store   database.Store
	Sweeper Sweeper
	Clock   clockwork.Clock
}
