package discount

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/product"
)

// Source resolves codes of one discount kind into records and decides whether
// a resolved record applies to a set of product categories. Vouchers and
// promotions each provide an implementation so the calculator is written once
// against the interface.
type Source interface {
	Kind() Kind
	// Resolve returns the currently-valid record for code, or ErrNotFound.
	// orderTotal feeds the voucher minimum-order-value filter; promotions
	// ignore it.
	Resolve(ctx context.Context, code string, orderTotal decimal.Decimal) (*Record, error)
	// Applicable reports whether rec covers at least one of the given
	// categories.
	Applicable(rec *Record, categories []product.Category) bool
}

// VoucherSource adapts a VoucherRepository to the Source interface.
type VoucherSource struct {
	repo VoucherRepository
}

// NewVoucherSource returns a Source backed by the given voucher repository.
func NewVoucherSource(repo VoucherRepository) *VoucherSource {
	return &VoucherSource{repo: repo}
}

func (s *VoucherSource) Kind() Kind { return KindVoucher }

func (s *VoucherSource) Resolve(ctx context.Context, code string, orderTotal decimal.Decimal) (*Record, error) {
	v, err := s.repo.ResolveByCode(ctx, code, orderTotal)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:         v.ID,
		Kind:       KindVoucher,
		Code:       v.Code,
		Type:       v.Type,
		Value:      v.Value,
		UsageLimit: v.UsageLimit,
	}, nil
}

// Applicable always returns true: vouchers have no category restriction.
func (s *VoucherSource) Applicable(_ *Record, _ []product.Category) bool {
	return true
}

// PromotionSource adapts a PromotionRepository to the Source interface.
type PromotionSource struct {
	repo PromotionRepository
}

// NewPromotionSource returns a Source backed by the given promotion repository.
func NewPromotionSource(repo PromotionRepository) *PromotionSource {
	return &PromotionSource{repo: repo}
}

func (s *PromotionSource) Kind() Kind { return KindPromotion }

func (s *PromotionSource) Resolve(ctx context.Context, code string, _ decimal.Decimal) (*Record, error) {
	p, err := s.repo.ResolveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &Record{
		ID:                 p.ID,
		Kind:               KindPromotion,
		Code:               p.Code,
		Type:               p.Type,
		Value:              p.Value,
		UsageLimit:         p.UsageLimit,
		EligibleCategories: p.EligibleCategories,
	}, nil
}

// Applicable reports whether any category in the order intersects the
// promotion's eligible set.
func (s *PromotionSource) Applicable(rec *Record, categories []product.Category) bool {
	eligible := make(map[product.Category]struct{}, len(rec.EligibleCategories))
	for _, c := range rec.EligibleCategories {
		eligible[c] = struct{}{}
	}
	for _, c := range categories {
		if _, ok := eligible[c]; ok {
			return true
		}
	}
	return false
}
