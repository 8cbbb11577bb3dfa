package products

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/rdx"
)

var ErrNotFound = errors.New("product not found")

// productDoc mirrors the catalog documents as the admin tooling writes them.
type productDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Slug          string             `bson:"slug,omitempty"`
	Title         string             `bson:"titulo"`
	Subtitle      string             `bson:"subtitulo"`
	Description   string             `bson:"descricao"`
	Price         bson.RawValue      `bson:"preco"`
	OriginalPrice bson.RawValue      `bson:"precoOriginal,omitempty"`
	ImageURL      string             `bson:"imagemUrl"`
	FileURL       string             `bson:"arquivoUrl,omitempty"`
	Category      string             `bson:"categoria"`
	Features      []string           `bson:"features"`
	Bestseller    bool               `bson:"bestseller"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

// money reads a price stored as double, integer or Decimal128.
func money(v bson.RawValue) (decimal.Decimal, bool) {
	switch v.Type {
	case bsontype.Double:
		return decimal.NewFromFloat(v.Double()).Round(2), true
	case bsontype.Int32:
		return decimal.NewFromInt32(v.Int32()), true
	case bsontype.Int64:
		return decimal.NewFromInt(v.Int64()), true
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(v.Decimal128().String())
		return d, err == nil
	}
	return decimal.Zero, false
}

func (d *productDoc) product() (*models.Product, error) {
	price, ok := money(d.Price)
	if !ok || price.IsNegative() {
		return nil, fmt.Errorf("product %s has no usable price", d.ID.Hex())
	}
	p := &models.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Subtitle:    d.Subtitle,
		Description: d.Description,
		Price:       price,
		ImageURL:    d.ImageURL,
		FileURL:     d.FileURL,
		Category:    d.Category,
		Features:    d.Features,
		Bestseller:  d.Bestseller,
		CreatedAt:   d.CreatedAt,
	}
	if orig, ok := money(d.OriginalPrice); ok {
		p.OriginalPrice = &orig
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return p, nil
}

// MongoCatalog reads products from the catalog collection.
type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(collection *mongo.Collection) *MongoCatalog {
	return &MongoCatalog{collection: collection}
}

// GetProduct looks a product up by ObjectID hex or by slug.
func (c *MongoCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	filter := bson.M{"slug": id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		filter = bson.M{"_id": oid}
	}

	var doc productDoc
	if err := c.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.product()
}

// MemoryCatalog serves a fixed product set.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]models.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Lookup is satisfied by every catalog implementation.
type Lookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// CachedCatalog puts a Redis read-through cache in front of another catalog.
// Cache failures fall through to the backing catalog.
type CachedCatalog struct {
	next  Lookup
	cache *rdx.Cache
}

func NewCachedCatalog(next Lookup, cache *rdx.Cache) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	hit, err := c.cache.Get(ctx, id, &p)
	if err != nil {
		log.Println("Product cache read error:", err)
	}
	if hit {
		return &p, nil
	}

	fresh, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, id, fresh); err != nil {
		log.Println("Product cache write error:", err)
	}
	return fresh, nil
}
