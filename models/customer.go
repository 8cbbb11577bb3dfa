package models

import "time"

type PersonType string

const (
	PersonIndividual PersonType = "individual"
	PersonBusiness   PersonType = "business"
)

// CustomerStatus only ever moves suspended -> purchased.
type CustomerStatus string

const (
	CustomerSuspended CustomerStatus = "suspended"
	CustomerPurchased CustomerStatus = "purchased"
)

// Customer is the live customer record, keyed by email.
type Customer struct {
	ID          string         `json:"id" bson:"_id,omitempty"`
	Name        string         `json:"name" bson:"name"`
	Email       string         `json:"email" bson:"email"`
	TaxID       string         `json:"taxId,omitempty" bson:"taxId,omitempty"`
	Phone       string         `json:"phone" bson:"phone"`
	PersonType  PersonType     `json:"personType" bson:"personType"`
	Status      CustomerStatus `json:"status" bson:"status"`
	LastOrderID string         `json:"lastOrderId,omitempty" bson:"lastOrderId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// CustomerSnapshot is the copy of customer identification embedded in an order.
type CustomerSnapshot struct {
	Name       string     `json:"name" bson:"name"`
	Email      string     `json:"email" bson:"email"`
	TaxID      string     `json:"taxId,omitempty" bson:"taxId,omitempty"`
	Phone      string     `json:"phone" bson:"phone"`
	PersonType PersonType `json:"personType" bson:"personType"`
}

func (c Customer) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{
		Name:       c.Name,
		Email:      c.Email,
		TaxID:      c.TaxID,
		Phone:      c.Phone,
		PersonType: c.PersonType,
	}
}
