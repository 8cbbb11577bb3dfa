package notify

import (
	"context"
	"log"
	"time"

	"github.com/Papel-hub/talentoStore/models"
)

// ReceiptItem is one purchased product and where to download it.
type ReceiptItem struct {
	Title    string
	Quantity int
	Price    string
	FileURL  string
}

// Receipt is everything the purchase confirmation needs.
type Receipt struct {
	Email    string
	Name     string
	OrderID  string
	Items    []ReceiptItem
	Total    string
	Currency string
	PaidAt   time.Time
}

// Notifier delivers purchase receipts.
type Notifier interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

// ReceiptFor builds the receipt of a paid order.
func ReceiptFor(o models.Order, paidAt time.Time) Receipt {
	items := make([]ReceiptItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ReceiptItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    it.Subtotal().StringFixed(2),
			FileURL:  it.FileURL,
		})
	}
	return Receipt{
		Email:    o.Customer.Email,
		Name:     o.Customer.Name,
		OrderID:  o.ID,
		Items:    items,
		Total:    o.Total.StringFixed(2),
		Currency: o.Currency,
		PaidAt:   paidAt,
	}
}

// LogNotifier only logs receipts. Used when SMTP is not configured.
type LogNotifier struct{}

func (LogNotifier) SendReceipt(_ context.Context, r Receipt) error {
	log.Printf("[Notify] receipt for order %s to %s (%d items, total %s %s)",
		r.OrderID, r.Email, len(r.Items), r.Total, r.Currency)
	return nil
}
