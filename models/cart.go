package models

import "github.com/shopspring/decimal"

// CartLine is a single product entry in a shopper's cart.
// Quantity is always >= 1; a line dropping to zero is removed.
type CartLine struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle,omitempty"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	FileURL   string          `json:"fileUrl,omitempty"` // digital delivery link, copied onto the order
}

// Subtotal returns unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineFromProduct snapshots the catalog fields a cart line needs.
func LineFromProduct(p Product, qty int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Title:     p.Title,
		Subtitle:  p.Subtitle,
		ImageURL:  p.ImageURL,
		UnitPrice: p.Price,
		Quantity:  qty,
		FileURL:   p.FileURL,
	}
}

// Cart is an ordered set of lines keyed by product id.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

func (c *Cart) index(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Line returns the line for productID, if any.
func (c *Cart) Line(productID string) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// Put increments an existing line or appends a new one.
func (c *Cart) Put(line CartLine) {
	if i := c.index(line.ProductID); i >= 0 {
		c.Lines[i].Quantity += line.Quantity
		return
	}
	c.Lines = append(c.Lines, line)
}

// SetQuantity replaces a line's quantity. It reports false if no line exists.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Lines[i].Quantity = qty
	return true
}

func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
