package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PreferenceItem is one priced line sent to the payment gateway.
type PreferenceItem struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id"`
}

type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"-"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest asks the gateway for a payment preference.
type PreferenceRequest struct {
	Items             []PreferenceItem
	Payer             Payer
	BackURLs          BackURLs
	AutoReturn        string
	ExternalReference string
	NotificationURL   string
}

// Preference is the gateway's handle for an amount to collect.
type Preference struct {
	ID          string
	RedirectURL string
}

// PaymentDetails is what the gateway reports when a payment is fetched by id.
type PaymentDetails struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	PreferenceID      string // payment reference key linking back to the order
	LastUpdated       time.Time
}

// IdempotencyRecord represents an idempotency key record stored in Mongo.
// LockedUntil leases the key to the request running it; OrderID is set once
// that request has created an order, so a retry resumes it.
type IdempotencyRecord struct {
	Key         string                 `bson:"key" json:"key"`
	Method      string                 `bson:"method" json:"method"`
	Path        string                 `bson:"path" json:"path"`
	RequestHash string                 `bson:"request_hash" json:"request_hash"`
	Response    map[string]interface{} `bson:"response,omitempty" json:"response,omitempty"`
	OrderID     string                 `bson:"order_id,omitempty" json:"order_id,omitempty"`
	LockedUntil time.Time              `bson:"locked_until" json:"locked_until"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time              `bson:"expires_at" json:"expires_at"`
}
