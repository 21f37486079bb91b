//go:build integration

package integration

import (
	"math"
	"net/http"
	"strconv"
	"testing"
)

// Seeded catalog entries used by the order tests. IDs follow insert order in
// db/seed/products.json.
const (
	dogChewToyID   = 15 // pet care, 7.25
	headphonesID   = 13 // media, 199.99
	yogaMatID      = 9  // health and wellness, 29.99
	scratchPostID  = 16 // pet care, 34.50
	cookwareSetID  = 12 // household items, 129.00
	bookshelfID    = 7  // furniture and decor, 189.00
	coldBrewID     = 3  // food and beverage, 8.50
	tableLampID    = 8  // furniture and decor, 54.00
	cloudStorageID = 17 // digital services, 99.00
)

func createOrder(t *testing.T, req orderRequest) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/order", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body := decodeJSON[errorResponse](t, resp)
		t.Fatalf("create order: expected 201, got %d (%s)", resp.StatusCode, body.Message)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestCreateOrder_NoDiscount(t *testing.T) {
	order := createOrder(t, orderRequest{
		TotalPrice: 14.50,
		Products: []orderItemRequest{
			{ProductID: dogChewToyID, Category: "pet care", Quantity: 2},
		},
	})

	if math.Abs(order.TotalPrice-14.50) > 0.001 {
		t.Errorf("total: got %v, want 14.50", order.TotalPrice)
	}
	if order.DiscountKind != "" {
		t.Errorf("unexpected discount kind %q", order.DiscountKind)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Errorf("unexpected items: %+v", order.Items)
	}
}

func TestCreateOrder_FixedVoucher(t *testing.T) {
	// SAVE20 takes 20 off orders of at least 100.
	order := createOrder(t, orderRequest{
		TotalPrice:   199.99,
		DiscountType: "voucher",
		DiscountCode: "SAVE20",
		Products: []orderItemRequest{
			{ProductID: headphonesID, Category: "media", Quantity: 1},
		},
	})

	if math.Abs(order.TotalPrice-179.99) > 0.001 {
		t.Errorf("total: got %v, want 179.99", order.TotalPrice)
	}
	if order.DiscountKind != "voucher" {
		t.Errorf("discount kind: got %q, want voucher", order.DiscountKind)
	}
}

func TestCreateOrder_PercentageVoucherCappedAtHalf(t *testing.T) {
	// HALFPRICE advertises 80% but the discount amount is capped at half the
	// pre-discount total.
	order := createOrder(t, orderRequest{
		TotalPrice:   129.00,
		DiscountType: "voucher",
		DiscountCode: "HALFPRICE",
		Products: []orderItemRequest{
			{ProductID: cookwareSetID, Category: "household items", Quantity: 1},
		},
	})

	if math.Abs(order.TotalPrice-64.50) > 0.001 {
		t.Errorf("total: got %v, want 64.50", order.TotalPrice)
	}
}

func TestCreateOrder_VoucherBelowMinimum(t *testing.T) {
	resp := doPost(t, "/api/order", orderRequest{
		TotalPrice:   17.00,
		DiscountType: "voucher",
		DiscountCode: "SAVE20",
		Products: []orderItemRequest{
			{ProductID: coldBrewID, Category: "food and beverage", Quantity: 2},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_Promotion(t *testing.T) {
	// PETWEEK gives 15% off orders containing pet care products.
	order := createOrder(t, orderRequest{
		TotalPrice:   34.50,
		DiscountType: "promotion",
		DiscountCode: "PETWEEK",
		Products: []orderItemRequest{
			{ProductID: scratchPostID, Category: "pet care", Quantity: 1},
		},
	})

	if math.Abs(order.TotalPrice-29.33) > 0.001 {
		t.Errorf("total: got %v, want 29.33", order.TotalPrice)
	}
	if order.DiscountKind != "promotion" {
		t.Errorf("discount kind: got %q, want promotion", order.DiscountKind)
	}
}

func TestCreateOrder_PromotionNotApplicable(t *testing.T) {
	resp := doPost(t, "/api/order", orderRequest{
		TotalPrice:   29.99,
		DiscountType: "promotion",
		DiscountCode: "PETWEEK",
		Products: []orderItemRequest{
			{ProductID: yogaMatID, Category: "health and wellness", Quantity: 1},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_UnknownDiscountType(t *testing.T) {
	resp := doPost(t, "/api/order", orderRequest{
		TotalPrice:   10,
		DiscountType: "giftcard",
		DiscountCode: "ANY",
		Products: []orderItemRequest{
			{ProductID: coldBrewID, Category: "food and beverage", Quantity: 1},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	// Create a product with almost no stock so the order cannot be filled.
	resp := doPost(t, "/api/product", map[string]any{
		"name":     "Nearly Sold Out",
		"category": "media",
		"price":    10.0,
		"stock":    1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d", resp.StatusCode)
	}
	created := decodeJSON[productResponse](t, resp)
	resp.Body.Close()

	resp = doPost(t, "/api/order", orderRequest{
		TotalPrice: 30,
		Products: []orderItemRequest{
			{ProductID: created.ID, Category: "media", Quantity: 3},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	resp := doPost(t, "/api/order", orderRequest{TotalPrice: 10})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestApplyDiscountToOrder(t *testing.T) {
	order := createOrder(t, orderRequest{
		TotalPrice: 189.00,
		Products: []orderItemRequest{
			{ProductID: bookshelfID, Category: "furniture and decor", Quantity: 1},
		},
	})

	path := "/api/order/" + strconv.FormatInt(order.ID, 10) + "/discount"

	// HOMEDEAL takes a flat 25 off furniture orders.
	resp := doPost(t, path, map[string]string{
		"discountType": "promotion",
		"discountCode": "HOMEDEAL",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply discount: expected 200, got %d", resp.StatusCode)
	}
	discounted := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if math.Abs(discounted.TotalPrice-164.00) > 0.001 {
		t.Errorf("total: got %v, want 164.00", discounted.TotalPrice)
	}
	if discounted.DiscountKind != "promotion" {
		t.Errorf("discount kind: got %q, want promotion", discounted.DiscountKind)
	}

	// A second application conflicts: the order already has a discount.
	resp = doPost(t, path, map[string]string{
		"discountType": "promotion",
		"discountCode": "HOMEDEAL",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("second apply: expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateOrder(t *testing.T) {
	order := createOrder(t, orderRequest{
		TotalPrice: 54.00,
		Products: []orderItemRequest{
			{ProductID: tableLampID, Category: "furniture and decor", Quantity: 1},
		},
	})

	path := "/api/order/" + strconv.FormatInt(order.ID, 10)

	resp := doPut(t, path, orderRequest{
		TotalPrice: 99.00,
		Products: []orderItemRequest{
			{ProductID: cloudStorageID, Category: "digital services", Quantity: 1},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decodeJSON[orderResponse](t, resp)

	if math.Abs(updated.TotalPrice-99.00) > 0.001 {
		t.Errorf("total: got %v, want 99.00", updated.TotalPrice)
	}
	if len(updated.Items) != 1 || updated.Items[0].ProductID != cloudStorageID {
		t.Errorf("line items not replaced: %+v", updated.Items)
	}
}

func TestDeleteOrder(t *testing.T) {
	order := createOrder(t, orderRequest{
		TotalPrice: 8.50,
		Products: []orderItemRequest{
			{ProductID: coldBrewID, Category: "food and beverage", Quantity: 1},
		},
	})

	path := "/api/order/" + strconv.FormatInt(order.ID, 10)

	resp := doDelete(t, path)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doGet(t, path)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/order/999999")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
