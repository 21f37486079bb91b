package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/product"
)

const (
	listPromotionsSQL = `SELECT id, code, eligible_categories, discount_type, discount_value,
		expiration_date, usage_limit, created_at, updated_at
		FROM promotions ORDER BY id`

	getPromotionByIDSQL = `SELECT id, code, eligible_categories, discount_type, discount_value,
		expiration_date, usage_limit, created_at, updated_at
		FROM promotions WHERE id = $1`

	// Category eligibility is intentionally absent here: it depends on the
	// products in the order, so the calculator checks it after resolution.
	resolvePromotionSQL = `SELECT id, code, eligible_categories, discount_type, discount_value,
		expiration_date, usage_limit, created_at, updated_at
		FROM promotions
		WHERE code = $1
		  AND expiration_date > now()
		  AND usage_limit > 0`

	createPromotionSQL = `INSERT INTO promotions
		(code, eligible_categories, discount_type, discount_value, expiration_date, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	updatePromotionSQL = `UPDATE promotions
		SET code = $2, eligible_categories = $3, discount_type = $4, discount_value = $5,
		    expiration_date = $6, usage_limit = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`

	consumePromotionSQL = `UPDATE promotions
		SET usage_limit = usage_limit - 1, updated_at = now()
		WHERE id = $1 AND usage_limit > 0`
)

var _ discount.PromotionRepository = (*PromotionRepository)(nil)

// PromotionRepository implements discount.PromotionRepository backed by
// PostgreSQL. Eligible categories are stored in a JSONB column.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// List returns all promotions ordered by id.
func (r *PromotionRepository) List(ctx context.Context) ([]discount.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

// GetByID returns a single promotion by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id int64) (*discount.Promotion, error) {
	rows, err := r.pool.Query(ctx, getPromotionByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %d: %w", id, err)
	}
	return &p, nil
}

// ResolveByCode returns the currently-valid promotion for code, applying the
// expiration and usage filters in SQL.
func (r *PromotionRepository) ResolveByCode(ctx context.Context, code string) (*discount.Promotion, error) {
	rows, err := r.pool.Query(ctx, resolvePromotionSQL, code)
	if err != nil {
		return nil, fmt.Errorf("resolving promotion %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("resolving promotion %q: %w", code, err)
	}
	return &p, nil
}

// Create inserts a new promotion, filling in its id and timestamps.
func (r *PromotionRepository) Create(ctx context.Context, p *discount.Promotion) error {
	categories, err := json.Marshal(p.EligibleCategories)
	if err != nil {
		return fmt.Errorf("marshaling eligible categories: %w", err)
	}

	err = r.pool.QueryRow(ctx, createPromotionSQL,
		p.Code, categories, p.Type, p.Value, p.ExpirationDate, p.UsageLimit,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.Code, err)
	}
	return nil
}

// Update persists all mutable fields of the promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *discount.Promotion) error {
	categories, err := json.Marshal(p.EligibleCategories)
	if err != nil {
		return fmt.Errorf("marshaling eligible categories: %w", err)
	}

	err = r.pool.QueryRow(ctx, updatePromotionSQL,
		p.ID, p.Code, categories, p.Type, p.Value, p.ExpirationDate, p.UsageLimit,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.ErrNotFound
		}
		return fmt.Errorf("updating promotion %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes the promotion by id.
func (r *PromotionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promotion %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (discount.Promotion, error) {
	var (
		p            discount.Promotion
		discountType string
		categories   []byte
	)
	err := row.Scan(
		&p.ID, &p.Code, &categories, &discountType, &p.Value,
		&p.ExpirationDate, &p.UsageLimit, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.Type = discount.ValueType(discountType)

	var eligible []product.Category
	if err := json.Unmarshal(categories, &eligible); err != nil {
		return p, fmt.Errorf("unmarshaling eligible categories: %w", err)
	}
	p.EligibleCategories = eligible
	return p, nil
}
