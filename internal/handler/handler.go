// Package handler exposes the HTTP surface of the API: user registration and
// login, product/voucher/promotion CRUD, and the order endpoints.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/order"
	"github.com/evermart/shop-api/internal/domain/product"
	"github.com/evermart/shop-api/internal/domain/user"
)

// Handler routes API requests to the domain services.
type Handler struct {
	users      *user.Service
	orders     *order.Service
	products   product.Repository
	vouchers   discount.VoucherRepository
	promotions discount.PromotionRepository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	users *user.Service,
	orders *order.Service,
	products product.Repository,
	vouchers discount.VoucherRepository,
	promotions discount.PromotionRepository,
) *Handler {
	return &Handler{
		users:      users,
		orders:     orders,
		products:   products,
		vouchers:   vouchers,
		promotions: promotions,
	}
}

// Register mounts all API routes on mux. The user endpoints are public;
// everything else goes through the bearer-token auth middleware.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/user/register", h.RegisterUser)
	mux.HandleFunc("POST /api/user/login", h.LoginUser)

	mux.HandleFunc("GET /api/product", h.auth(h.ListProducts))
	mux.HandleFunc("POST /api/product", h.auth(h.CreateProduct))
	mux.HandleFunc("GET /api/product/{id}", h.auth(h.GetProduct))
	mux.HandleFunc("PUT /api/product/{id}", h.auth(h.UpdateProduct))
	mux.HandleFunc("DELETE /api/product/{id}", h.auth(h.DeleteProduct))

	mux.HandleFunc("GET /api/voucher", h.auth(h.ListVouchers))
	mux.HandleFunc("POST /api/voucher", h.auth(h.CreateVoucher))
	mux.HandleFunc("GET /api/voucher/{id}", h.auth(h.GetVoucher))
	mux.HandleFunc("PUT /api/voucher/{id}", h.auth(h.UpdateVoucher))
	mux.HandleFunc("DELETE /api/voucher/{id}", h.auth(h.DeleteVoucher))

	mux.HandleFunc("GET /api/promotion", h.auth(h.ListPromotions))
	mux.HandleFunc("POST /api/promotion", h.auth(h.CreatePromotion))
	mux.HandleFunc("GET /api/promotion/{id}", h.auth(h.GetPromotion))
	mux.HandleFunc("PUT /api/promotion/{id}", h.auth(h.UpdatePromotion))
	mux.HandleFunc("DELETE /api/promotion/{id}", h.auth(h.DeletePromotion))

	mux.HandleFunc("GET /api/order", h.auth(h.ListOrders))
	mux.HandleFunc("POST /api/order", h.auth(h.CreateOrder))
	mux.HandleFunc("GET /api/order/{id}", h.auth(h.GetOrder))
	mux.HandleFunc("PUT /api/order/{id}", h.auth(h.UpdateOrder))
	mux.HandleFunc("DELETE /api/order/{id}", h.auth(h.DeleteOrder))
	mux.HandleFunc("POST /api/order/{id}/discount", h.auth(h.ApplyOrderDiscount))
}

// errorResponse is the wire shape of every error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondDomainError maps a domain error to its HTTP status, logging
// server-side failures with request context.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondError(w, status, message)
}
