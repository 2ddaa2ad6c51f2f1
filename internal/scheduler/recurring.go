package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/logger"
)

// RecurringGenerator is the ledger operation the sweep drives.
type RecurringGenerator interface {
	GenerateRecurring(ctx context.Context, s domain.Session, year int, month time.Month) (*ledger.RecurringResult, error)
}

// UserLister lists the users that own active recurring bills.
type UserLister interface {
	ListUsersWithActiveBills(ctx context.Context) ([]string, error)
}

// RecurringSweep generates the current month's recurring entries for every
// user with active bills. Users are processed one at a time and a failure
// for one user does not stop the others.
type RecurringSweep struct {
	Generator RecurringGenerator
	Users     UserLister
	Clock     func() time.Time
}

// NewRecurringSweep creates a sweep using the wall clock.
func NewRecurringSweep(gen RecurringGenerator, users UserLister) *RecurringSweep {
	return &RecurringSweep{Generator: gen, Users: users, Clock: time.Now}
}

// Name implements Job.
func (r *RecurringSweep) Name() string {
	return "recurring_sweep"
}

// Run implements Job.
func (r *RecurringSweep) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	users, err := r.Users.ListUsersWithActiveBills(ctx)
	if err != nil {
		return fmt.Errorf("RecurringSweep: listing users: %w", err)
	}

	now := r.Clock()
	var errs []error
	generated := 0
	for _, userID := range users {
		s := domain.Session{UserID: userID, Clock: r.Clock}
		res, err := r.Generator.GenerateRecurring(ctx, s, now.Year(), now.Month())
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Recurring generation failed")
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		generated += res.Generated
	}

	log.Info().
		Int("users", len(users)).
		Int("generated", generated).
		Int("failed", len(errs)).
		Str("month", now.Format("2006-01")).
		Msg("Recurring sweep finished")

	if len(errs) > 0 {
		return fmt.Errorf("RecurringSweep: %w", errors.Join(errs...))
	}
	return nil
}
