package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/order"
	"github.com/evermart/shop-api/internal/domain/product"
)

type orderItemRequest struct {
	ProductID int64  `json:"productId"`
	Category  string `json:"productCategory"`
	Quantity  int32  `json:"quantity"`
}

type createOrderRequest struct {
	TotalPrice   float64            `json:"totalPrice"`
	DiscountType string             `json:"discountType,omitempty"`
	DiscountCode string             `json:"discountCode,omitempty"`
	Products     []orderItemRequest `json:"products"`
}

type applyDiscountRequest struct {
	DiscountType string `json:"discountType"`
	DiscountCode string `json:"discountCode"`
}

type lineItemResponse struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"orderId"`
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
}

type orderResponse struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"userId"`
	DiscountKind string             `json:"discountKind,omitempty"`
	DiscountID   int64              `json:"discountId,omitempty"`
	TotalPrice   float64            `json:"totalPrice"`
	Items        []lineItemResponse `json:"items,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func toOrderResponse(o *order.Order, items []order.LineItem) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice.InexactFloat64(),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if o.Discount != nil {
		resp.DiscountKind = string(o.Discount.Kind)
		resp.DiscountID = o.Discount.ID
	}
	for _, item := range items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return resp
}

// toCreateRequest validates the body and builds the service request.
func (r *createOrderRequest) toCreateRequest(userID int64) (order.CreateRequest, string, bool) {
	if r.TotalPrice < 0 {
		return order.CreateRequest{}, "totalPrice must not be negative", false
	}
	kind := discount.Kind(r.DiscountType)
	if r.DiscountType != "" && !kind.Valid() {
		return order.CreateRequest{}, "discountType must be voucher or promotion", false
	}
	if kind != "" && r.DiscountCode == "" {
		return order.CreateRequest{}, "discountCode is required when discountType is set", false
	}

	items := make([]order.ItemInput, len(r.Products))
	for i, p := range r.Products {
		if p.ProductID <= 0 {
			return order.CreateRequest{}, "productId must be positive", false
		}
		if p.Quantity < 1 {
			return order.CreateRequest{}, "quantity must be at least 1", false
		}
		category := product.Category(p.Category)
		if !category.Valid() {
			return order.CreateRequest{}, "unknown product category: " + p.Category, false
		}
		items[i] = order.ItemInput{
			ProductID: p.ProductID,
			Category:  category,
			Quantity:  p.Quantity,
		}
	}

	return order.CreateRequest{
		UserID:       userID,
		TotalPrice:   decimal.NewFromFloat(r.TotalPrice),
		DiscountKind: kind,
		DiscountCode: r.DiscountCode,
		Items:        items,
	}, "", true
}

// CreateOrder places a new order for the authenticated user, applying the
// requested discount and decrementing stock in one transaction.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	createReq, msg, ok := req.toCreateRequest(userID)
	if !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.orders.Create(r.Context(), createReq)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.LineItems))
}

// ListOrders returns all orders without their line items.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i], nil)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetOrder returns one order and its line items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	result, err := h.orders.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(result.Order, result.LineItems))
}

// UpdateOrder replaces an order wholesale: total, discount, and line items.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	userID, _ := UserIDFromContext(r.Context())

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updateReq, msg, reqOK := req.toCreateRequest(userID)
	if !reqOK {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.orders.Update(r.Context(), id, updateReq)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(result.Order, result.LineItems))
}

// ApplyOrderDiscount applies a voucher or promotion to an existing order that
// does not have one yet.
func (h *Handler) ApplyOrderDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req applyDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind := discount.Kind(req.DiscountType)
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "discountType must be voucher or promotion")
		return
	}
	if req.DiscountCode == "" {
		respondError(w, http.StatusBadRequest, "discountCode is required")
		return
	}

	result, err := h.orders.ApplyDiscount(r.Context(), id, kind, req.DiscountCode)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(result.Order, result.LineItems))
}

// DeleteOrder removes an order and, via cascade, its line items.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
