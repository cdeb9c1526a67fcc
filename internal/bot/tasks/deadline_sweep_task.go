package tasks

import (
	"context"
	"fmt"
)

// newDeadlineSweepTask runs one sweeper tick. A failed tick leaves overdue
// tasks active, so the next tick picks them up again.
func newDeadlineSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "deadline_sweep")

	return func(ctx context.Context) error {
		expired, err := deps.Sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("deadline sweep failed: %w", err)
		}
		if len(expired) > 0 {
			log.InfoContext(ctx, "Deadline sweep expired tasks", "count", len(expired))
		}
		return nil
	}
}
