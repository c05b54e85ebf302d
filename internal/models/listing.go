package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingCategory enumerates the service categories offered on the marketplace
type ListingCategory string

const (
	CategoryFoodDelivery  ListingCategory = "food_delivery"
	CategoryCourier       ListingCategory = "courier"
	CategoryAerialImaging ListingCategory = "aerial_imaging"
	CategorySiteMapping   ListingCategory = "site_mapping"
)

// ValidCategory reports whether c is a known listing category
func ValidCategory(c ListingCategory) bool {
	switch c {
	case CategoryFoodDelivery, CategoryCourier, CategoryAerialImaging, CategorySiteMapping:
		return true
	}
	return false
}

// Listing is a provider-owned service offering. It is read-only from the
// booking flow's perspective.
type Listing struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ProviderID  uuid.UUID       `db:"provider_id" json:"provider_id"`
	Category    ListingCategory `db:"category" json:"category"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	PriceBase   decimal.Decimal `db:"price_base" json:"price_base"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CreateListingRequest is the payload for POST /api/listings
type CreateListingRequest struct {
	Category    ListingCategory `json:"category" binding:"required"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	PriceBase   decimal.Decimal `json:"price_base" binding:"required"`
}

// Validate checks category and price constraints
func (r *CreateListingRequest) Validate() error {
	if !ValidCategory(r.Category) {
		return fmt.Errorf("unknown category: %s", r.Category)
	}
	if r.PriceBase.IsNegative() || r.PriceBase.IsZero() {
		return fmt.Errorf("price_base must be positive")
	}
	return nil
}

// UpdateListingRequest is the payload for PATCH /api/listings/:id
type UpdateListingRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	PriceBase   *decimal.Decimal `json:"price_base"`
	Active      *bool            `json:"active"`
}
