package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/order"
	"github.com/evermart/shop-api/internal/domain/product"
)

const (
	insertOrderSQL = `INSERT INTO orders (user_id, discount_kind, discount_id, total_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	updateOrderSQL = `UPDATE orders
		SET user_id = $2, discount_kind = $3, discount_id = $4, total_price = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	getOrderByIDSQL = `SELECT id, user_id, discount_kind, discount_id, total_price, created_at, updated_at
		FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, user_id, discount_kind, discount_id, total_price, created_at, updated_at
		FROM orders ORDER BY id`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	insertLineItemSQL = `INSERT INTO order_line_items (order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	deleteLineItemsSQL = `DELETE FROM order_line_items WHERE order_id = $1`

	lineItemsByOrderSQL = `SELECT id, order_id, product_id, quantity, created_at
		FROM order_line_items WHERE order_id = $1 ORDER BY id`

	updateProductStockSQL = `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Write operations
// run through WithinTx, which binds an orderTx to a single pgx transaction.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// WithinTx runs fn inside a database transaction. A nil return commits; any
// error (or panic) rolls back every write made through the passed order.Tx.
func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

// GetByID returns the order with the given id.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// List returns all orders ordered by id.
func (s *OrderStore) List(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// LineItems returns the order's line items ordered by id.
func (s *OrderStore) LineItems(ctx context.Context, orderID int64) ([]order.LineItem, error) {
	rows, err := s.pool.Query(ctx, lineItemsByOrderSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing line items for order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanLineItem)
}

// Delete removes the order; line items follow via FK cascade.
func (s *OrderStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// orderTx implements order.Tx over an open pgx transaction. Every statement
// it issues joins that transaction, so a rollback undoes the order row, line
// items, stock decrements, and discount usage decrement together.
type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	kind, discountID := discountColumns(o.Discount)
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.UserID, kind, discountID, o.TotalPrice,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (t *orderTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	kind, discountID := discountColumns(o.Discount)
	err := t.tx.QueryRow(ctx, updateOrderSQL,
		o.ID, o.UserID, kind, discountID, o.TotalPrice,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	return nil
}

func (t *orderTx) InsertLineItems(ctx context.Context, orderID int64, inputs []order.ItemInput) ([]order.LineItem, error) {
	items := make([]order.LineItem, len(inputs))
	for i, in := range inputs {
		item := order.LineItem{
			OrderID:   orderID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
		}
		err := t.tx.QueryRow(ctx, insertLineItemSQL,
			orderID, in.ProductID, in.Quantity,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting line item for product %d: %w", in.ProductID, err)
		}
		items[i] = item
	}
	return items, nil
}

func (t *orderTx) DeleteLineItems(ctx context.Context, orderID int64) error {
	if _, err := t.tx.Exec(ctx, deleteLineItemsSQL, orderID); err != nil {
		return fmt.Errorf("deleting line items for order %d: %w", orderID, err)
	}
	return nil
}

// ReduceStock loads the product within the transaction's isolation, checks
// the decrement would not go negative, and persists the new stock. The
// caller's rollback undoes the write.
func (t *orderTx) ReduceStock(ctx context.Context, productID int64, quantity int32) (*product.Product, error) {
	p, err := getProductByID(ctx, t.tx, productID)
	if err != nil {
		return nil, err
	}

	newStock := p.Stock - quantity
	if newStock < 0 {
		return nil, &product.InsufficientStockError{
			ProductID: productID,
			Stock:     p.Stock,
			Requested: quantity,
		}
	}

	if _, err := t.tx.Exec(ctx, updateProductStockSQL, productID, newStock); err != nil {
		return nil, fmt.Errorf("updating stock for product %d: %w", productID, err)
	}
	p.Stock = newStock
	return p, nil
}

// ConsumeDiscount decrements the discount's remaining usage. The guard on
// usage_limit re-checks remaining uses at write time, so two transactions
// racing for the final use cannot both commit.
func (t *orderTx) ConsumeDiscount(ctx context.Context, rec *discount.Record) error {
	var sql string
	switch rec.Kind {
	case discount.KindVoucher:
		sql = consumeVoucherSQL
	case discount.KindPromotion:
		sql = consumePromotionSQL
	default:
		return fmt.Errorf("consume discount: unknown kind %q", rec.Kind)
	}

	tag, err := t.tx.Exec(ctx, sql, rec.ID)
	if err != nil {
		return fmt.Errorf("consuming %s %d: %w", rec.Kind, rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrUsageExhausted
	}
	return nil
}

func discountColumns(ref *order.DiscountRef) (*string, *int64) {
	if ref == nil {
		return nil, nil
	}
	kind := string(ref.Kind)
	id := ref.ID
	return &kind, &id
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		kind       *string
		discountID *int64
	)
	err := row.Scan(
		&o.ID, &o.UserID, &kind, &discountID, &o.TotalPrice,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if kind != nil && discountID != nil {
		o.Discount = &order.DiscountRef{
			Kind: discount.Kind(*kind),
			ID:   *discountID,
		}
	}
	return o, err
}

func scanLineItem(row pgx.CollectableRow) (order.LineItem, error) {
	var item order.LineItem
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.CreatedAt)
	return item, err
}
