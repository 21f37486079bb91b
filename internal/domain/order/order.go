package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyItems = errors.New("items required")
)

// AlreadyDiscountedError indicates an attempt to apply a discount to an order
// that already references one.
type AlreadyDiscountedError struct {
	OrderID int64
}

func (e *AlreadyDiscountedError) Error() string {
	return fmt.Sprintf("order %d already has a discount applied", e.OrderID)
}

// DiscountRef identifies the single discount applied to an order. A nil
// *DiscountRef on Order means no discount; a non-nil ref is always fully
// populated, so voucher and promotion references cannot coexist.
type DiscountRef struct {
	Kind discount.Kind
	ID   int64
}

// Order is a placed customer order with its post-discount total.
type Order struct {
	ID         int64
	UserID     int64
	Discount   *DiscountRef
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineItem is one product+quantity entry within an order. Its lifecycle is
// bound to the order: created alongside it, replaced wholesale on update,
// removed by FK cascade on delete.
type LineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int32
	CreatedAt time.Time
}

// ItemInput is a requested line item. Category is supplied by the caller on
// create/update so promotion eligibility can be checked without a product
// fetch; apply-discount re-reads it from the catalog.
type ItemInput struct {
	ProductID int64
	Category  product.Category
	Quantity  int32
}

// Tx groups the write operations that must commit or roll back as one unit.
// Implementations bind every call to a single database transaction.
type Tx interface {
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	// InsertLineItems bulk-inserts items for orderID and returns them with
	// assigned ids.
	InsertLineItems(ctx context.Context, orderID int64, items []ItemInput) ([]LineItem, error)
	// DeleteLineItems removes all line items of orderID.
	DeleteLineItems(ctx context.Context, orderID int64) error
	// ReduceStock decrements the product's stock by quantity, failing with
	// *product.InsufficientStockError when the result would be negative and
	// product.ErrNotFound when the product does not exist.
	ReduceStock(ctx context.Context, productID int64, quantity int32) (*product.Product, error)
	// ConsumeDiscount persists the record's decremented usage count, failing
	// with discount.ErrUsageExhausted when no use remained.
	ConsumeDiscount(ctx context.Context, rec *discount.Record) error
}

// Store is the persistence boundary for orders. WithinTx runs fn inside a
// database transaction: a nil return commits, any error rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	LineItems(ctx context.Context, orderID int64) ([]LineItem, error)
	// Delete removes the order, returning ErrNotFound when it does not
	// exist. Line items go with it via FK cascade.
	Delete(ctx context.Context, id int64) error
}
