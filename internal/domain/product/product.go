package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Category is one of the fixed set of product categories.
type Category string

// The full category catalog. Request validation rejects anything else before
// it reaches the domain layer.
const (
	CategoryDigitalServices Category = "digital services"
	CategoryCosmetics       Category = "cosmetics and body care"
	CategoryFoodAndBeverage Category = "food and beverage"
	CategoryFurnitureDecor  Category = "furniture and decor"
	CategoryHealthWellness  Category = "health and wellness"
	CategoryHouseholdItems  Category = "household items"
	CategoryMedia           Category = "media"
	CategoryPetCare         Category = "pet care"
	CategoryOfficeEquipment Category = "office equipment"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryDigitalServices, CategoryCosmetics, CategoryFoodAndBeverage,
		CategoryFurnitureDecor, CategoryHealthWellness, CategoryHouseholdItems,
		CategoryMedia, CategoryPetCare, CategoryOfficeEquipment:
		return true
	}
	return false
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID        int64
	Name      string
	Category  Category
	Price     decimal.Decimal
	Stock     int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InsufficientStockError indicates a stock decrement would drive the product's
// stock below zero. It always aborts the enclosing transaction.
type InsufficientStockError struct {
	ProductID int64
	Stock     int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: have %d, need %d",
		e.ProductID, e.Stock, e.Requested)
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
