package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
)

const (
	listVouchersSQL = `SELECT id, code, discount_type, discount_value, expiration_date,
		usage_limit, minimum_order_value, created_at, updated_at
		FROM vouchers ORDER BY id`

	getVoucherByIDSQL = `SELECT id, code, discount_type, discount_value, expiration_date,
		usage_limit, minimum_order_value, created_at, updated_at
		FROM vouchers WHERE id = $1`

	// The full validity filter from the discount lookup contract: the code
	// must match, the voucher must not be expired or exhausted, and the
	// minimum order value (when set) must not exceed the order total.
	resolveVoucherSQL = `SELECT id, code, discount_type, discount_value, expiration_date,
		usage_limit, minimum_order_value, created_at, updated_at
		FROM vouchers
		WHERE code = $1
		  AND expiration_date > now()
		  AND usage_limit > 0
		  AND (minimum_order_value IS NULL OR minimum_order_value <= $2)`

	createVoucherSQL = `INSERT INTO vouchers
		(code, discount_type, discount_value, expiration_date, usage_limit, minimum_order_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	updateVoucherSQL = `UPDATE vouchers
		SET code = $2, discount_type = $3, discount_value = $4, expiration_date = $5,
		    usage_limit = $6, minimum_order_value = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteVoucherSQL = `DELETE FROM vouchers WHERE id = $1`

	consumeVoucherSQL = `UPDATE vouchers
		SET usage_limit = usage_limit - 1, updated_at = now()
		WHERE id = $1 AND usage_limit > 0`
)

var _ discount.VoucherRepository = (*VoucherRepository)(nil)

// VoucherRepository implements discount.VoucherRepository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// List returns all vouchers ordered by id.
func (r *VoucherRepository) List(ctx context.Context) ([]discount.Voucher, error) {
	rows, err := r.pool.Query(ctx, listVouchersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// GetByID returns a single voucher by id.
func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*discount.Voucher, error) {
	rows, err := r.pool.Query(ctx, getVoucherByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting voucher %d: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting voucher %d: %w", id, err)
	}
	return &v, nil
}

// ResolveByCode returns the currently-valid voucher for code, applying the
// expiration, usage, and minimum-order-value filters in SQL. A voucher with
// no remaining uses never resolves.
func (r *VoucherRepository) ResolveByCode(ctx context.Context, code string, orderTotal decimal.Decimal) (*discount.Voucher, error) {
	rows, err := r.pool.Query(ctx, resolveVoucherSQL, code, orderTotal)
	if err != nil {
		return nil, fmt.Errorf("resolving voucher %q: %w", code, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("resolving voucher %q: %w", code, err)
	}
	return &v, nil
}

// Create inserts a new voucher, filling in its id and timestamps.
func (r *VoucherRepository) Create(ctx context.Context, v *discount.Voucher) error {
	err := r.pool.QueryRow(ctx, createVoucherSQL,
		v.Code, v.Type, v.Value, v.ExpirationDate, v.UsageLimit, v.MinimumOrderValue,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	return nil
}

// Update persists all mutable fields of the voucher.
func (r *VoucherRepository) Update(ctx context.Context, v *discount.Voucher) error {
	err := r.pool.QueryRow(ctx, updateVoucherSQL,
		v.ID, v.Code, v.Type, v.Value, v.ExpirationDate, v.UsageLimit, v.MinimumOrderValue,
	).Scan(&v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return discount.ErrNotFound
		}
		return fmt.Errorf("updating voucher %d: %w", v.ID, err)
	}
	return nil
}

// Delete removes the voucher by id.
func (r *VoucherRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteVoucherSQL, id)
	if err != nil {
		return fmt.Errorf("deleting voucher %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (discount.Voucher, error) {
	var (
		v            discount.Voucher
		discountType string
	)
	err := row.Scan(
		&v.ID, &v.Code, &discountType, &v.Value, &v.ExpirationDate,
		&v.UsageLimit, &v.MinimumOrderValue, &v.CreatedAt, &v.UpdatedAt,
	)
	v.Type = discount.ValueType(discountType)
	return v, err
}
