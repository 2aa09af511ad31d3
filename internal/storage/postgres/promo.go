package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/munchify/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT code, kind, value, min_items, description,
		valid_from, valid_until, max_uses, uses
		FROM promos WHERE code = UPPER($1)`

	incrementPromoUsesSQL = `UPDATE promos SET uses = uses + 1
		WHERE code = UPPER($1) AND (max_uses = 0 OR uses < max_uses)`

	releasePromoUseSQL = `UPDATE promos SET uses = uses - 1 WHERE code = UPPER($1) AND uses > 0`

	promoExistsSQL = `SELECT EXISTS (SELECT 1 FROM promos WHERE code = UPPER($1))`

	upsertPromoSQL = `INSERT INTO promos (code, kind, value, min_items, description, valid_from, valid_until, max_uses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			min_items = EXCLUDED.min_items,
			description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses`
)

// upsertBatchSize bounds the number of statements queued per round trip.
const upsertBatchSize = 500

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo rule by its code (case-insensitive).
// Returns promo.ErrInvalidCode when no rule exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding promo by code %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given code.
// Returns promo.ErrUsageLimitReached when the code has no uses left.
func (r *PromoRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementPromoUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for promo %q: %w", code, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, promoExistsSQL, code).Scan(&exists); err != nil {
		return fmt.Errorf("checking promo %q: %w", code, err)
	}
	if !exists {
		return promo.ErrInvalidCode
	}
	return promo.ErrUsageLimitReached
}

// ReleaseUse gives back one use of code. The counter never drops below zero.
func (r *PromoRepository) ReleaseUse(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, releasePromoUseSQL, code); err != nil {
		return fmt.Errorf("releasing use of promo %q: %w", code, err)
	}
	return nil
}

// Upsert inserts rules or refreshes their definitions. Usage counters of
// existing codes are preserved. progress, if set, is called after every batch.
func (r *PromoRepository) Upsert(ctx context.Context, rules []promo.Rule, progress func(done int)) error {
	for start := 0; start < len(rules); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(rules))

		batch := &pgx.Batch{}
		for _, rule := range rules[start:end] {
			batch.Queue(upsertPromoSQL,
				promo.NormalizeCode(rule.Code), string(rule.Kind), rule.Value, int32(rule.MinItems),
				rule.Description, rule.ValidFrom, rule.ValidUntil, int32(rule.MaxUses),
			)
		}
		if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting promos %d-%d: %w", start, end, err)
		}
		if progress != nil {
			progress(end)
		}
	}
	return nil
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var (
		rule       promo.Rule
		kind       string
		value      decimal.Decimal
		minItems   int32
		validFrom  *time.Time
		validUntil *time.Time
		maxUses    int32
		uses       int32
	)
	err := row.Scan(
		&rule.Code, &kind, &value, &minItems, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses,
	)
	rule.Kind = promo.Kind(kind)
	rule.Value = value
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
