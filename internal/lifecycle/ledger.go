package lifecycle

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/logger"
	"github.com/edgard/taskbot/internal/metrics"
)

// Ledger accumulates signed point entries per user.
type Ledger struct {
	store   database.Store
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLedger(store database.Store, clock clockwork.Clock, m *metrics.Metrics, log *slog.Logger) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{
		store:   store,
		clock:   clock,
		metrics: m,
		logger:  log.With("component", "reward_ledger"),
	}
}

// CreditPoints appends an entry. amount may be negative.
func (l *Ledger) CreditPoints(ctx context.Context, userID, amount int64, reason string) error {
	entry := &database.RewardEntry{
		UserID:    userID,
		Points:    amount,
		Reason:    reason,
		CreatedAt: l.clock.Now(),
	}
	if err := l.store.AddRewardEntry(ctx, entry); err != nil {
		return storeError("add reward entry", err)
	}
	l.metrics.LedgerEntryAdded()
	l.logger.InfoContext(ctx, "Points credited", "user_id", userID, "amount", amount, "reason", reason)
	return nil
}

// GetTotalPoints returns the sum of the user's entries, 0 when there are none.
func (l *Ledger) GetTotalPoints(ctx context.Context, userID int64) (int64, error) {
	total, err := l.store.SumPoints(ctx, userID)
	if err != nil {
		return 0, storeError("sum points", err)
	}
	return total, nil
}

// Leaderboard returns the top users by total points.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]database.UserPoints, error) {
	rows, err := l.store.TopPoints(ctx, limit)
	if err != nil {
		return nil, storeError("leaderboard", err)
	}
	return rows, nil
}
