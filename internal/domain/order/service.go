package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/product"
)

// CreateRequest holds the input for creating or wholesale-updating an order.
// TotalPrice is the pre-discount sum; the service computes the stored total.
type CreateRequest struct {
	UserID       int64
	TotalPrice   decimal.Decimal
	DiscountKind discount.Kind
	DiscountCode string
	Items        []ItemInput
}

// Result is a created or updated order together with its line items.
type Result struct {
	Order     *Order
	LineItems []LineItem
}

// Service orchestrates the order transaction: discount calculation, order and
// line-item persistence, per-item stock reduction, and discount usage
// consumption, all inside one database transaction.
type Service struct {
	store    Store
	calc     *discount.Calculator
	products product.Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(store Store, calc *discount.Calculator, products product.Repository) *Service {
	return &Service{
		store:    store,
		calc:     calc,
		products: products,
	}
}

// Create places a new order. The discount (when requested) is resolved and
// priced before any write; all writes then run in a single transaction in
// strict sequence: order insert, line-item bulk insert, per-item stock
// decrement, discount usage decrement. The first failure rolls back
// everything.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	applied, err := s.applyDiscount(ctx, req.TotalPrice, req.DiscountKind, req.DiscountCode, itemCategories(req.Items))
	if err != nil {
		return nil, err
	}

	o := &Order{
		UserID:     req.UserID,
		Discount:   discountRef(applied),
		TotalPrice: finalTotal(req.TotalPrice, applied),
	}

	var items []LineItem
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}

		items, err = tx.InsertLineItems(ctx, o.ID, req.Items)
		if err != nil {
			return errors.Wrap(err, "insert line items")
		}

		if err := s.reduceStock(ctx, tx, items); err != nil {
			return err
		}

		return s.consumeDiscount(ctx, tx, applied)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return &Result{Order: o, LineItems: items}, nil
}

// ApplyDiscount applies a voucher or promotion to an existing order that has
// none yet. The order's stored total is treated as the pre-discount total;
// line items are replaced and their stock decrements re-applied inside the
// same transaction, mirroring the create flow.
func (s *Service) ApplyDiscount(ctx context.Context, orderID int64, kind discount.Kind, code string) (*Result, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Discount != nil {
		return nil, &AlreadyDiscountedError{OrderID: orderID}
	}

	existing, err := s.store.LineItems(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load line items")
	}

	inputs, err := s.itemInputs(ctx, existing)
	if err != nil {
		return nil, err
	}

	applied, err := s.applyDiscount(ctx, o.TotalPrice, kind, code, itemCategories(inputs))
	if err != nil {
		return nil, err
	}

	o.Discount = discountRef(applied)
	o.TotalPrice = finalTotal(o.TotalPrice, applied)

	var items []LineItem
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		items, err = s.replaceLineItems(ctx, tx, orderID, inputs)
		if err != nil {
			return err
		}

		if err := s.reduceStock(ctx, tx, items); err != nil {
			return err
		}

		return s.consumeDiscount(ctx, tx, applied)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "apply discount to order %d", orderID)
	}

	return &Result{Order: o, LineItems: items}, nil
}

// Update replaces an existing order wholesale: new total, new discount, new
// line items, with the same transactional sequence as Create.
func (s *Service) Update(ctx context.Context, orderID int64, req CreateRequest) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	applied, err := s.applyDiscount(ctx, req.TotalPrice, req.DiscountKind, req.DiscountCode, itemCategories(req.Items))
	if err != nil {
		return nil, err
	}

	o.UserID = req.UserID
	o.Discount = discountRef(applied)
	o.TotalPrice = finalTotal(req.TotalPrice, applied)

	var items []LineItem
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}

		items, err = s.replaceLineItems(ctx, tx, orderID, req.Items)
		if err != nil {
			return err
		}

		if err := s.reduceStock(ctx, tx, items); err != nil {
			return err
		}

		return s.consumeDiscount(ctx, tx, applied)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update order %d", orderID)
	}

	return &Result{Order: o, LineItems: items}, nil
}

// Delete removes the order. Line items are deleted by FK cascade.
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	return s.store.Delete(ctx, orderID)
}

// Get returns the order and its line items.
func (s *Service) Get(ctx context.Context, orderID int64) (*Result, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.LineItems(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load line items")
	}
	return &Result{Order: o, LineItems: items}, nil
}

// List returns all orders.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.store.List(ctx)
}

// applyDiscount runs the calculator when a discount kind is requested.
// It returns nil when the request carries no discount.
func (s *Service) applyDiscount(
	ctx context.Context,
	preTotal decimal.Decimal,
	kind discount.Kind,
	code string,
	categories []product.Category,
) (*discount.Applied, error) {
	if kind == "" {
		return nil, nil
	}
	return s.calc.Calculate(ctx, preTotal, kind, code, categories)
}

// reduceStock decrements stock for every line item sequentially. The first
// failure is returned as-is so the enclosing transaction rolls back all
// earlier decrements along with the order and its line items.
func (s *Service) reduceStock(ctx context.Context, tx Tx, items []LineItem) error {
	for _, item := range items {
		if _, err := tx.ReduceStock(ctx, item.ProductID, item.Quantity); err != nil {
			return errors.Wrapf(err, "reduce stock for product %d", item.ProductID)
		}
	}
	return nil
}

func (s *Service) consumeDiscount(ctx context.Context, tx Tx, applied *discount.Applied) error {
	if applied == nil {
		return nil
	}
	if err := tx.ConsumeDiscount(ctx, applied.Record); err != nil {
		return errors.Wrap(err, "consume discount")
	}
	return nil
}

// replaceLineItems deletes the order's current line items and bulk-inserts
// the replacements.
func (s *Service) replaceLineItems(ctx context.Context, tx Tx, orderID int64, inputs []ItemInput) ([]LineItem, error) {
	if err := tx.DeleteLineItems(ctx, orderID); err != nil {
		return nil, errors.Wrap(err, "delete line items")
	}
	items, err := tx.InsertLineItems(ctx, orderID, inputs)
	if err != nil {
		return nil, errors.Wrap(err, "insert line items")
	}
	return items, nil
}

// itemInputs rebuilds item inputs for existing line items, re-reading product
// categories from the catalog.
func (s *Service) itemInputs(ctx context.Context, items []LineItem) ([]ItemInput, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	inputs := make([]ItemInput, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", item.ProductID)
		}
		inputs[i] = ItemInput{
			ProductID: item.ProductID,
			Category:  p.Category,
			Quantity:  item.Quantity,
		}
	}
	return inputs, nil
}

func itemCategories(items []ItemInput) []product.Category {
	categories := make([]product.Category, 0, len(items))
	for _, item := range items {
		categories = append(categories, item.Category)
	}
	return categories
}

func discountRef(applied *discount.Applied) *DiscountRef {
	if applied == nil {
		return nil
	}
	return &DiscountRef{Kind: applied.Record.Kind, ID: applied.Record.ID}
}

func finalTotal(preTotal decimal.Decimal, applied *discount.Applied) decimal.Decimal {
	if applied == nil {
		return preTotal
	}
	return applied.Total
}
