package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evermart/shop-api/internal/domain/discount"
	"github.com/evermart/shop-api/internal/domain/product"
)

type promotionRequest struct {
	Code               string   `json:"code"`
	EligibleCategories []string `json:"eligibleCategories"`
	DiscountType       string   `json:"discountType"`
	DiscountValue      float64  `json:"discountValue"`
	ExpirationDate     string   `json:"expirationDate"`
	UsageLimit         int32    `json:"usageLimit"`
}

type promotionResponse struct {
	ID                 int64     `json:"id"`
	Code               string    `json:"code"`
	EligibleCategories []string  `json:"eligibleCategories"`
	DiscountType       string    `json:"discountType"`
	DiscountValue      float64   `json:"discountValue"`
	ExpirationDate     time.Time `json:"expirationDate"`
	UsageLimit         int32     `json:"usageLimit"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toPromotionResponse(p *discount.Promotion) promotionResponse {
	categories := make([]string, len(p.EligibleCategories))
	for i, c := range p.EligibleCategories {
		categories[i] = string(c)
	}
	return promotionResponse{
		ID:                 p.ID,
		Code:               p.Code,
		EligibleCategories: categories,
		DiscountType:       string(p.Type),
		DiscountValue:      p.Value.InexactFloat64(),
		ExpirationDate:     p.ExpirationDate,
		UsageLimit:         p.UsageLimit,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// toPromotion validates the request and builds the domain entity.
func (r *promotionRequest) toPromotion() (*discount.Promotion, string, bool) {
	if r.Code == "" {
		return nil, "code is required", false
	}
	if len(r.EligibleCategories) == 0 {
		return nil, "eligibleCategories must not be empty", false
	}
	categories := make([]product.Category, len(r.EligibleCategories))
	for i, c := range r.EligibleCategories {
		cat := product.Category(c)
		if !cat.Valid() {
			return nil, "unknown product category: " + c, false
		}
		categories[i] = cat
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

	return &discount.Promotion{
		Code:               r.Code,
		EligibleCategories: categories,
		Type:               t,
		Value:              decimal.NewFromFloat(r.DiscountValue),
		ExpirationDate:     expires,
		UsageLimit:         r.UsageLimit,
	}, "", true
}

// ListPromotions returns all promotions.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.promotions.List(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	resp := make([]promotionResponse, len(promotions))
	for i := range promotions {
		resp[i] = toPromotionResponse(&promotions[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetPromotion returns one promotion by id.
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid promotion id")
		return
	}

	p, err := h.promotions.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPromotionResponse(p))
}

// CreatePromotion adds a new promotion.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, msg, ok := req.toPromotion()
	if !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.promotions.Create(r.Context(), p); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPromotionResponse(p))
}

// UpdatePromotion replaces all mutable fields of a promotion.
func (h *Handler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid promotion id")
		return
	}

	var req promotionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, msg, reqOK := req.toPromotion()
	if !reqOK {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	p.ID = id

	if err := h.promotions.Update(r.Context(), p); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toPromotionResponse(p))
}

// DeletePromotion removes a promotion.
func (h *Handler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid promotion id")
		return
	}

	if err := h.promotions.Delete(r.Context(), id); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
