package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
)

type voucherRequest struct {
	Code              string   `json:"code"`
	DiscountType      string   `json:"discountType"`
	DiscountValue     float64  `json:"discountValue"`
	ExpirationDate    string   `json:"expirationDate"`
	UsageLimit        int32    `json:"usageLimit"`
	MinimumOrderValue *float64 `json:"minimumOrderValue,omitempty"`
}

type voucherResponse struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	DiscountType      string    `json:"discountType"`
	DiscountValue     float64   `json:"discountValue"`
	ExpirationDate    time.Time `json:"expirationDate"`
	UsageLimit        int32     `json:"usageLimit"`
	MinimumOrderValue *float64  `json:"minimumOrderValue,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toVoucherResponse(v *discount.Voucher) voucherResponse {
	resp := voucherResponse{
		ID:             v.ID,
		Code:           v.Code,
		DiscountType:   string(v.Type),
		DiscountValue:  v.Value.InexactFloat64(),
		ExpirationDate: v.ExpirationDate,
		UsageLimit:     v.UsageLimit,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	if v.MinimumOrderValue != nil {
		min := v.MinimumOrderValue.InexactFloat64()
		resp.MinimumOrderValue = &min
	}
	return resp
}

// toVoucher validates the request and builds the domain entity.
func (r *voucherRequest) toVoucher() (*discount.Voucher, string, bool) {
	if r.Code == "" {
		return nil, "code is required", false
	}
	t := discount.ValueType(r.DiscountType)
	if !t.Valid() {
		return nil, "discountType must be percentage or fixed", false
	}
	if r.DiscountValue < 0 {
		return nil, "discountValue must not be negative", false
	}
	expires, err := time.Parse(time.RFC3339, r.ExpirationDate)
	if err != nil {
		return nil, "expirationDate must be RFC 3339", false
	}
	if r.UsageLimit < 1 {
		return nil, "usageLimit must be at least 1", false
	}

	v := &discount.Voucher{
		Code:           r.Code,
		Type:           t,
		Value:          decimal.NewFromFloat(r.DiscountValue),
		ExpirationDate: expires,
		UsageLimit:     r.UsageLimit,
	}
	if r.MinimumOrderValue != nil {
		min := decimal.NewFromFloat(*r.MinimumOrderValue)
		v.MinimumOrderValue = &min
	}
	return v, "", true
}

// ListVouchers returns all vouchers.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := make([]voucherResponse, len(vouchers))
	for i := range vouchers {
		resp[i] = toVoucherResponse(&vouchers[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetVoucher returns one voucher by id.
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	v, err := h.vouchers.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toVoucherResponse(v))
}

// CreateVoucher adds a new voucher.
func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, msg, ok := req.toVoucher()
	if !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.vouchers.Create(r.Context(), v); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toVoucherResponse(v))
}

// UpdateVoucher replaces all mutable fields of a voucher.
func (h *Handler) UpdateVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	var req voucherRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, msg, reqOK := req.toVoucher()
	if !reqOK {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	v.ID = id

	if err := h.vouchers.Update(r.Context(), v); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toVoucherResponse(v))
}

// DeleteVoucher removes a voucher.
func (h *Handler) DeleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	if err := h.vouchers.Delete(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
