// Package lifecycle implements task assignment, report submission, deadline
// expiry and the reward ledger on top of the Store.
//
// A task moves active -> completed when a report is accepted, or
// active -> expired when the sweeper finds it past its deadline. Both moves
// are compare-and-set transitions executed by the Store, so whichever writer
// gets there first wins and the other observes a harmless failure.
package lifecycle

import (
	"context"
	"errors"

	"github.com/edgard/taskbot/internal/errs"
)

// AdminSource answers whether a user may run admin operations.
type AdminSource interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// StaticAdmins is an AdminSource backed by a fixed set of user ids, usually
// taken from configuration.
type StaticAdmins map[int64]struct{}

// NewStaticAdmins builds a StaticAdmins from ids.
func NewStaticAdmins(ids ...int64) StaticAdmins {
	admins := make(StaticAdmins, len(ids))
	for _, id := range ids {
		admins[id] = struct{}{}
	}
	return admins
}

func (a StaticAdmins) IsAdmin(_ context.Context, userID int64) bool {
	_, ok := a[userID]
	return ok
}

// Notifier delivers a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// storeError passes business and context errors through and wraps anything
// else as StoreUnavailable.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.IsBusiness(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.StoreUnavailable(op, err)
}
