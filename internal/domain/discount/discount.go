// Package discount implements voucher and promotion resolution and the
// price-adjustment rules applied during order placement.
package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/product"
)

// Kind distinguishes the two discount families an order may reference.
type Kind string

const (
	KindVoucher   Kind = "voucher"
	KindPromotion Kind = "promotion"
)

// Valid reports whether k is a known discount kind.
func (k Kind) Valid() bool {
	return k == KindVoucher || k == KindPromotion
}

// ValueType enumerates how a discount's value is interpreted.
type ValueType string

const (
	// TypePercentage discounts a proportion of the pre-discount total,
	// capped at 50% of that total.
	TypePercentage ValueType = "percentage"
	// TypeFixed discounts a flat amount. The resulting total is clamped at
	// zero but deliberately NOT capped at 50% of the pre-discount total.
	TypeFixed ValueType = "fixed"
)

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

// ErrNotFound is returned by repositories when no record matches an id or
// when a code lookup fails its validity filter (expired, exhausted, or below
// the minimum order value).
var ErrNotFound = errors.New("discount not found")

// ErrUsageExhausted is returned when persisting a usage decrement finds no
// remaining uses. It aborts the enclosing order transaction.
var ErrUsageExhausted = errors.New("discount usage limit exhausted")

// NotFoundError reports that no currently-valid discount matches a code.
type NotFoundError struct {
	Kind Kind
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("valid %s with code %q not found", e.Kind, e.Code)
}

// NotApplicableError reports that a promotion covers none of the product
// categories present in the order. It is a business-rule rejection: no charge
// is made and no usage is consumed.
type NotApplicableError struct {
	Code string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("promotion %q is not applicable to the products in the order", e.Code)
}

// UnknownKindError reports a discount kind outside the voucher/promotion set.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown discount kind %q", e.Kind)
}

// Voucher is a single-use-counted, code-redeemable discount with an optional
// minimum-order-value gate.
type Voucher struct {
	ID                int64
	Code              string
	Type              ValueType
	Value             decimal.Decimal
	ExpirationDate    time.Time
	UsageLimit        int32
	MinimumOrderValue *decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Promotion is a code-redeemable discount restricted to specific product
// categories.
type Promotion struct {
	ID                 int64
	Code               string
	EligibleCategories []product.Category
	Type               ValueType
	Value              decimal.Decimal
	ExpirationDate     time.Time
	UsageLimit         int32
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Record is the resolved view of a voucher or promotion consumed by the
// calculator and the order transaction.
type Record struct {
	ID                 int64
	Kind               Kind
	Code               string
	Type               ValueType
	Value              decimal.Decimal
	UsageLimit         int32
	EligibleCategories []product.Category
}

// VoucherRepository defines persistence operations for vouchers.
//
// ResolveByCode applies the full validity filter: code match, expiration in
// the future, usage remaining, and minimum order value (when set) at or below
// orderTotal. It returns ErrNotFound when no record passes the filter.
type VoucherRepository interface {
	List(ctx context.Context) ([]Voucher, error)
	GetByID(ctx context.Context, id int64) (*Voucher, error)
	Create(ctx context.Context, v *Voucher) error
	Update(ctx context.Context, v *Voucher) error
	Delete(ctx context.Context, id int64) error
	ResolveByCode(ctx context.Context, code string, orderTotal decimal.Decimal) (*Voucher, error)
}

// PromotionRepository defines persistence operations for promotions.
//
// ResolveByCode filters on code match, expiration, and usage remaining.
// Category eligibility is checked separately by the calculator because it
// depends on the products in the order.
type PromotionRepository interface {
	List(ctx context.Context) ([]Promotion, error)
	GetByID(ctx context.Context, id int64) (*Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id int64) error
	ResolveByCode(ctx context.Context, code string) (*Promotion, error)
}
