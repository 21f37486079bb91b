package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/product"
)

// fakeStore keeps orders in memory and simulates transaction semantics: ops
// recorded by the fake Tx are discarded when fn returns an error.
type fakeStore struct {
	orders    map[int64]*Order
	lineItems map[int64][]LineItem
	products  map[int64]*product.Product
	usage     map[int64]int32 // discount id -> remaining uses
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    make(map[int64]*Order),
		lineItems: make(map[int64][]LineItem),
		products:  make(map[int64]*product.Product),
		usage:     make(map[int64]int32),
		nextID:    1,
	}
}

func (s *fakeStore) addProduct(id int64, category product.Category, stock int32) {
	s.products[id] = &product.Product{
		ID:       id,
		Name:     "product",
		Category: category,
		Price:    decimal.NewFromInt(10),
		Stock:    stock,
	}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &fakeTx{store: snapshot(s)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// Commit: adopt the snapshot state.
	*s = *tx.store
	return nil
}

// snapshot deep-copies the store so a failed tx leaves the original untouched.
func snapshot(s *fakeStore) *fakeStore {
	c := newFakeStore()
	c.nextID = s.nextID
	for id, o := range s.orders {
		copied := *o
		c.orders[id] = &copied
	}
	for id, items := range s.lineItems {
		c.lineItems[id] = append([]LineItem(nil), items...)
	}
	for id, p := range s.products {
		copied := *p
		c.products[id] = &copied
	}
	for id, n := range s.usage {
		c.usage[id] = n
	}
	return c
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *fakeStore) List(context.Context) ([]Order, error) {
	var out []Order
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *fakeStore) LineItems(_ context.Context, orderID int64) ([]LineItem, error) {
	return append([]LineItem(nil), s.lineItems[orderID]...), nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.orders[id]; !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	delete(s.lineItems, id)
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) InsertOrder(_ context.Context, o *Order) error {
	o.ID = t.store.nextID
	t.store.nextID++
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	copied := *o
	t.store.orders[o.ID] = &copied
	return nil
}

func (t *fakeTx) UpdateOrder(_ context.Context, o *Order) error {
	if _, ok := t.store.orders[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now()
	copied := *o
	t.store.orders[o.ID] = &copied
	return nil
}

func (t *fakeTx) InsertLineItems(_ context.Context, orderID int64, inputs []ItemInput) ([]LineItem, error) {
	items := make([]LineItem, len(inputs))
	for i, in := range inputs {
		items[i] = LineItem{
			ID:        t.store.nextID,
			OrderID:   orderID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			CreatedAt: time.Now(),
		}
		t.store.nextID++
	}
	t.store.lineItems[orderID] = append(t.store.lineItems[orderID], items...)
	return items, nil
}

func (t *fakeTx) DeleteLineItems(_ context.Context, orderID int64) error {
	delete(t.store.lineItems, orderID)
	return nil
}

func (t *fakeTx) ReduceStock(_ context.Context, productID int64, quantity int32) (*product.Product, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return nil, product.ErrNotFound
	}
	if p.Stock-quantity < 0 {
		return nil, &product.InsufficientStockError{
			ProductID: productID,
			Stock:     p.Stock,
			Requested: quantity,
		}
	}
	p.Stock -= quantity
	copied := *p
	return &copied, nil
}

func (t *fakeTx) ConsumeDiscount(_ context.Context, rec *discount.Record) error {
	if t.store.usage[rec.ID] <= 0 {
		return discount.ErrUsageExhausted
	}
	t.store.usage[rec.ID]--
	return nil
}

// fakeProductRepo backs the catalog reads the service performs outside the
// transaction.
type fakeProductRepo struct {
	store *fakeStore
}

func (f *fakeProductRepo) List(context.Context) ([]product.Product, error) { return nil, nil }
func (f *fakeProductRepo) Create(context.Context, *product.Product) error  { return nil }
func (f *fakeProductRepo) Update(context.Context, *product.Product) error  { return nil }
func (f *fakeProductRepo) Delete(context.Context, int64) error             { return nil }

func (f *fakeProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := f.store.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.store.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// voucherSourceForTest resolves a single voucher code against the fake
// store's usage counters so tests control both resolution and consumption.
type staticVoucherRepo struct {
	store   *fakeStore
	voucher discount.Voucher
}

func (r *staticVoucherRepo) List(context.Context) ([]discount.Voucher, error) { return nil, nil }
func (r *staticVoucherRepo) GetByID(context.Context, int64) (*discount.Voucher, error) {
	return nil, discount.ErrNotFound
}
func (r *staticVoucherRepo) Create(context.Context, *discount.Voucher) error { return nil }
func (r *staticVoucherRepo) Update(context.Context, *discount.Voucher) error { return nil }
func (r *staticVoucherRepo) Delete(context.Context, int64) error             { return nil }

func (r *staticVoucherRepo) ResolveByCode(_ context.Context, code string, _ decimal.Decimal) (*discount.Voucher, error) {
	if code != r.voucher.Code || r.store.usage[r.voucher.ID] <= 0 {
		return nil, discount.ErrNotFound
	}
	v := r.voucher
	v.UsageLimit = r.store.usage[v.ID]
	return &v, nil
}

type emptyPromotionRepo struct{}

func (emptyPromotionRepo) List(context.Context) ([]discount.Promotion, error) { return nil, nil }
func (emptyPromotionRepo) GetByID(context.Context, int64) (*discount.Promotion, error) {
	return nil, discount.ErrNotFound
}
func (emptyPromotionRepo) Create(context.Context, *discount.Promotion) error { return nil }
func (emptyPromotionRepo) Update(context.Context, *discount.Promotion) error { return nil }
func (emptyPromotionRepo) Delete(context.Context, int64) error               { return nil }
func (emptyPromotionRepo) ResolveByCode(context.Context, string) (*discount.Promotion, error) {
	return nil, discount.ErrNotFound
}

func newTestService(store *fakeStore) *Service {
	v := discount.Voucher{
		ID:             42,
		Code:           "SAVE20",
		Type:           discount.TypeFixed,
		Value:          decimal.NewFromInt(20),
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
	calc := discount.NewCalculator(
		discount.NewVoucherSource(&staticVoucherRepo{store: store, voucher: v}),
		discount.NewPromotionSource(emptyPromotionRepo{}),
	)
	return NewService(store, calc, &fakeProductRepo{store: store})
}

func TestCreate_WithoutDiscount(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	svc := newTestService(store)

	result, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Nil(t, result.Order.Discount)
	assert.True(t, result.Order.TotalPrice.Equal(decimal.NewFromInt(100)))
	require.Len(t, result.LineItems, 1)
	assert.EqualValues(t, 3, result.LineItems[0].Quantity)
	assert.EqualValues(t, 7, store.products[1].Stock)
}

func TestCreate_WithVoucher(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	store.usage[42] = 5
	svc := newTestService(store)

	result, err := svc.Create(t.Context(), CreateRequest{
		UserID:       1,
		TotalPrice:   decimal.NewFromInt(100),
		DiscountKind: discount.KindVoucher,
		DiscountCode: "SAVE20",
		Items:        []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Order.Discount)
	assert.Equal(t, discount.KindVoucher, result.Order.Discount.Kind)
	assert.EqualValues(t, 42, result.Order.Discount.ID)
	assert.True(t, result.Order.TotalPrice.Equal(decimal.NewFromInt(80)), "total = %s", result.Order.TotalPrice)
	assert.EqualValues(t, 4, store.usage[42], "usage decrement is persisted with the order")
}

func TestCreate_EmptyItems(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
	})

	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreate_InsufficientStockRollsBackEverything(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	store.addProduct(2, product.CategoryMedia, 1)
	store.usage[42] = 5
	svc := newTestService(store)

	_, err := svc.Create(t.Context(), CreateRequest{
		UserID:       1,
		TotalPrice:   decimal.NewFromInt(100),
		DiscountKind: discount.KindVoucher,
		DiscountCode: "SAVE20",
		Items: []ItemInput{
			{ProductID: 1, Category: product.CategoryMedia, Quantity: 5},
			{ProductID: 2, Category: product.CategoryMedia, Quantity: 3},
		},
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.EqualValues(t, 2, stockErr.ProductID)

	// Nothing committed: no order, first item's stock decrement undone,
	// voucher usage untouched.
	assert.Empty(t, store.orders)
	assert.EqualValues(t, 10, store.products[1].Stock)
	assert.EqualValues(t, 5, store.usage[42])
}

func TestCreate_UnknownDiscountKind(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	svc := newTestService(store)

	_, err := svc.Create(t.Context(), CreateRequest{
		UserID:       1,
		TotalPrice:   decimal.NewFromInt(100),
		DiscountKind: discount.Kind("giftcard"),
		DiscountCode: "ANY",
		Items:        []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 1}},
	})

	var unknownErr *discount.UnknownKindError
	assert.ErrorAs(t, err, &unknownErr)
	assert.Empty(t, store.orders)
}

func TestApplyDiscount(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	store.usage[42] = 5
	svc := newTestService(store)

	created, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 2}},
	})
	require.NoError(t, err)

	result, err := svc.ApplyDiscount(t.Context(), created.Order.ID, discount.KindVoucher, "SAVE20")
	require.NoError(t, err)

	require.NotNil(t, result.Order.Discount)
	assert.True(t, result.Order.TotalPrice.Equal(decimal.NewFromInt(80)), "total = %s", result.Order.TotalPrice)
	assert.EqualValues(t, 4, store.usage[42])
	// Line items are replaced and their stock decrements re-applied.
	require.Len(t, result.LineItems, 1)
	assert.EqualValues(t, 2, result.LineItems[0].Quantity)
	assert.EqualValues(t, 6, store.products[1].Stock)
}

func TestApplyDiscount_ConflictWhenAlreadyDiscounted(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	store.usage[42] = 5
	svc := newTestService(store)

	created, err := svc.Create(t.Context(), CreateRequest{
		UserID:       1,
		TotalPrice:   decimal.NewFromInt(100),
		DiscountKind: discount.KindVoucher,
		DiscountCode: "SAVE20",
		Items:        []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.ApplyDiscount(t.Context(), created.Order.ID, discount.KindVoucher, "SAVE20")

	var conflictErr *AlreadyDiscountedError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, created.Order.ID, conflictErr.OrderID)
	assert.EqualValues(t, 4, store.usage[42], "no extra usage consumed")
}

func TestApplyDiscount_OrderNotFound(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.ApplyDiscount(t.Context(), 999, discount.KindVoucher, "SAVE20")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ReplacesLineItems(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	store.addProduct(2, product.CategoryPetCare, 10)
	svc := newTestService(store)

	created, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 2}},
	})
	require.NoError(t, err)

	result, err := svc.Update(t.Context(), created.Order.ID, CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(60),
		Items:      []ItemInput{{ProductID: 2, Category: product.CategoryPetCare, Quantity: 4}},
	})
	require.NoError(t, err)

	assert.True(t, result.Order.TotalPrice.Equal(decimal.NewFromInt(60)))
	require.Len(t, result.LineItems, 1)
	assert.EqualValues(t, 2, result.LineItems[0].ProductID)

	stored, err := store.LineItems(t.Context(), created.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.EqualValues(t, 2, stored[0].ProductID)
}

func TestUpdate_NotFound(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	svc := newTestService(store)

	_, err := svc.Update(t.Context(), 999, CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(60),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 1}},
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	svc := newTestService(store)

	created, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(t.Context(), created.Order.ID))

	_, err = svc.Get(t.Context(), created.Order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(t.Context(), created.Order.ID), ErrNotFound)
}

func TestGet_ReturnsLineItems(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, product.CategoryMedia, 10)
	svc := newTestService(store)

	created, err := svc.Create(t.Context(), CreateRequest{
		UserID:     1,
		TotalPrice: decimal.NewFromInt(100),
		Items:      []ItemInput{{ProductID: 1, Category: product.CategoryMedia, Quantity: 2}},
	})
	require.NoError(t, err)

	result, err := svc.Get(t.Context(), created.Order.ID)
	require.NoError(t, err)

	assert.Equal(t, created.Order.ID, result.Order.ID)
	require.Len(t, result.LineItems, 1)
	assert.EqualValues(t, 1, result.LineItems[0].ProductID)
}
