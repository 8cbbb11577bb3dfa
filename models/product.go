package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The storefront only reads products.
type Product struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Subtitle      string           `json:"subtitle"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ImageURL      string           `json:"imageUrl"`
	FileURL       string           `json:"fileUrl,omitempty"`
	Category      string           `json:"category"`
	Features      []string         `json:"features"`
	Bestseller    bool             `json:"bestseller,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}
