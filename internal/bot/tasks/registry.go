package tasks

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/logger"
)

// ScheduledTaskFunc is the signature of every scheduled job. Returned errors
// are logged by the scheduler and do not stop later runs.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the jobs keyed by the names used in the scheduler
// section of the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	deps = deps.withDefaults()
	tasks := map[string]ScheduledTaskFunc{
		config.SweepTaskName: newDeadlineSweepTask(deps),
		"sql_maintenance":    newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

func (d TaskDeps) withDefaults() TaskDeps {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}
