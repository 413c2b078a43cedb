package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dukerupert/timebank/internal/auth"
	"github.com/dukerupert/timebank/internal/ledger"
	"github.com/dukerupert/timebank/internal/model"
	"github.com/dukerupert/timebank/internal/store"
)

// Archive is the archived form of a student account.
type Archive struct {
	User       *model.User      `json:"user"`
	Balance    *model.Balance   `json:"balance"`
	Activities []model.Activity `json:"activities"`
	Schedules  []model.Schedule `json:"schedules"`
	Subjects   []model.Subject  `json:"subjects"`
}

// DeleteAccount removes the actor's account and everything it owns. A
// student's data is archived first when an archiver is configured, and
// linked parents are unlinked. Every cleanup step is attempted; their
// failures are returned together and the user row survives so the
// deletion can be retried.
func (s *Service) DeleteAccount(ctx context.Context, actor auth.Actor) error {
	u, err := s.stores.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: user", ledger.ErrNotFound)
	}

	if u.IsStudent() && s.archiver != nil {
		key, err := s.archive(ctx, u)
		if err != nil {
			return fmt.Errorf("archive account: %w", err)
		}
		s.log.Info("account archived", "user_id", u.ID, "key", key)
	}

	var errs error
	step := func(name string, n int64, err error) {
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", name, err))
			return
		}
		if n > 0 {
			s.log.Debug("account data removed", "user_id", u.ID, "kind", name, "count", n)
		}
	}

	n, err := s.stores.Push.DeleteByUser(ctx, u.ID)
	step("push subscriptions", n, err)

	if u.IsStudent() {
		n, err = s.stores.Activities.DeleteByUser(ctx, u.ID)
		step("activities", n, err)
		n, err = s.stores.Statuses.DeleteByUser(ctx, u.ID)
		step("schedule statuses", n, err)
		n, err = s.stores.Schedules.DeleteByUser(ctx, u.ID)
		step("schedules", n, err)
		n, err = s.stores.Subjects.DeleteByUser(ctx, u.ID)
		step("subjects", n, err)
		step("balance", 0, s.stores.Balances.Delete(ctx, u.ID))

		parents, err := s.stores.Users.ListParents(ctx, u.FamilyCode)
		step("parent links", 0, err)
		for _, p := range parents {
			_, err := s.stores.Users.SetLinkedFamilyCode(ctx, p.ID, "")
			step("parent link "+p.ID, 0, err)
		}
	}

	if errs != nil {
		s.log.Error("account deletion incomplete", "user_id", u.ID, "errors", len(multierr.Errors(errs)), "error", errs)
		return errs
	}
	if err := s.stores.Users.Delete(ctx, u.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("account deleted", "user_id", u.ID, "role", u.Role)
	return nil
}

func (s *Service) archive(ctx context.Context, u *model.User) (string, error) {
	a := Archive{User: u}
	var err error
	if a.Balance, err = s.stores.Balances.Get(ctx, u.ID); err != nil {
		return "", err
	}
	if a.Activities, err = s.stores.Activities.Query(ctx, model.ActivityFilter{UserID: u.ID}); err != nil {
		return "", err
	}
	if a.Schedules, err = s.stores.Schedules.ListByUser(ctx, u.ID, false); err != nil {
		return "", err
	}
	if a.Subjects, err = s.stores.Subjects.ListByUser(ctx, u.ID); err != nil {
		return "", err
	}
	return s.archiver.ArchiveAccount(ctx, u.ID, a)
}

func isDuplicate(err error) bool {
	return errors.Is(err, store.ErrDuplicate)
}
