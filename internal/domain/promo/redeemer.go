package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Redeemer validates a code against cart items and consumes one use of it.
// Release returns a use whose order was never stored.
type Redeemer interface {
	Redeem(ctx context.Context, code string, items []Item) (*Discount, error)
	Release(ctx context.Context, code string) error
}

// RepoRedeemer implements Redeemer on top of a Repository.
type RepoRedeemer struct {
	repo Repository
	now  func() time.Time
}

// NewRepoRedeemer creates a RepoRedeemer backed by repo.
func NewRepoRedeemer(repo Repository) *RepoRedeemer {
	return &RepoRedeemer{repo: repo, now: time.Now}
}

// Redeem looks up the rule, checks its window and usage limit, applies it to
// items and increments the usage counter on success.
func (r *RepoRedeemer) Redeem(ctx context.Context, code string, items []Item) (*Discount, error) {
	code = NormalizeCode(code)
	rule, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup promo")
	}

	if err := rule.CheckAvailable(r.now()); err != nil {
		return nil, err
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}

	if err := r.repo.IncrementUses(ctx, code); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "increment promo uses")
	}

	return &d, nil
}

// Release gives back one use of code.
func (r *RepoRedeemer) Release(ctx context.Context, code string) error {
	if err := r.repo.ReleaseUse(ctx, NormalizeCode(code)); err != nil {
		return errors.Wrap(err, "release promo use")
	}
	return nil
}
