package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/product"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// Applied holds the outcome of a successful discount calculation. Record's
// UsageLimit has already been decremented in memory; the caller persists that
// decrement inside the same transaction as the order.
type Applied struct {
	Record *Record
	// Total is the order total after the discount, never negative.
	Total decimal.Decimal
}

// Calculator computes adjusted order totals from discount codes. It is
// polymorphic over discount kinds via the Source interface.
type Calculator struct {
	sources map[Kind]Source
}

// NewCalculator creates a Calculator over the given sources.
func NewCalculator(sources ...Source) *Calculator {
	m := make(map[Kind]Source, len(sources))
	for _, s := range sources {
		m[s.Kind()] = s
	}
	return &Calculator{sources: m}
}

// Calculate resolves the discount for kind/code and returns the adjusted
// total under the business rules:
//
//   - percentage: the discount amount is capped at 50% of preTotal.
//   - fixed: the total is clamped at zero, with NO 50% cap. The asymmetry
//     with the percentage branch is intentional and preserved.
//
// categories are the product categories present in the order; promotions that
// cover none of them fail with NotApplicableError.
func (c *Calculator) Calculate(
	ctx context.Context,
	preTotal decimal.Decimal,
	kind Kind,
	code string,
	categories []product.Category,
) (*Applied, error) {
	source, ok := c.sources[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}

	rec, err := source.Resolve(ctx, code, preTotal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Kind: kind, Code: code}
		}
		return nil, errors.Wrapf(err, "resolve %s %q", kind, code)
	}

	if !source.Applicable(rec, categories) {
		return nil, &NotApplicableError{Code: code}
	}

	total, err := adjustTotal(preTotal, rec.Type, rec.Value)
	if err != nil {
		return nil, err
	}

	// Consumed in memory only; the order transaction persists the decrement.
	rec.UsageLimit--

	return &Applied{Record: rec, Total: total}, nil
}

// adjustTotal applies a single discount value to preTotal.
func adjustTotal(preTotal decimal.Decimal, t ValueType, value decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case TypeFixed:
		total := preTotal.Sub(value)
		if total.IsNegative() {
			total = decimal.Zero
		}
		return total.Round(2), nil
	case TypePercentage:
		amount := preTotal.Mul(value).Div(hundred)
		maxAllowed := preTotal.Mul(half)
		if amount.GreaterThan(maxAllowed) {
			amount = maxAllowed
		}
		return preTotal.Sub(amount).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount value type: %q", t)
	}
}
