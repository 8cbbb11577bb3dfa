package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Papel-hub/talentoStore/models"
)

var ErrInvalidLine = errors.New("invalid cart line")

// Storage persists the serialized cart for one shopper session.
// Load returns nil bytes when nothing is stored yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store is the authoritative view of a shopper's intended purchase.
// Every mutation is written through to its Storage.
type Store struct {
	mu      sync.Mutex
	cart    models.Cart
	storage Storage
	open    bool
}

// Open restores the cart held by storage. Unreadable or malformed data is
// discarded and the store starts empty; only storage I/O errors are returned.
func Open(ctx context.Context, storage Storage) (*Store, error) {
	s := &Store{storage: storage}

	data, err := storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	lines, err := decodeLines(data)
	if err != nil {
		log.Printf("[Cart] discarding stored cart: %v", err)
		return s, nil
	}
	s.cart.Lines = lines
	return s, nil
}

func decodeLines(data []byte) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 || l.UnitPrice.IsNegative() || seen[l.ProductID] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLine, l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return lines, nil
}

func (s *Store) persist(ctx context.Context) error {
	lines := s.cart.Lines
	if lines == nil {
		lines = []models.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Save(ctx, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Add puts qty units of product in the cart, merging with an existing line.
// A qty below 1 counts as 1.
func (s *Store) Add(ctx context.Context, p models.Product, qty int) error {
	if qty < 1 {
		qty = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Put(models.LineFromProduct(p, qty))
	s.open = true
	return s.persist(ctx)
}

// Remove drops the line for productID. Removing a missing line is not an error.
func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Remove(productID)
	return s.persist(ctx)
}

// SetQuantity replaces a line's quantity; qty <= 0 removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		s.cart.Remove(productID)
	} else {
		s.cart.SetQuantity(productID, qty)
	}
	return s.persist(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Lines = nil
	return s.persist(ctx)
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartLine, len(s.cart.Lines))
	copy(out, s.cart.Lines)
	return out
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// IsOpen reports whether the cart drawer should be shown.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SetOpen toggles the drawer flag. It is not persisted.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}
