package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Papel-hub/talentoStore/db"
	"github.com/Papel-hub/talentoStore/models"
)

type MongoRepository struct {
	customers *mongo.Collection
	orders    *mongo.Collection
	pending   *mongo.Collection
}

func NewMongoRepository(c *db.Collections) *MongoRepository {
	return &MongoRepository{
		customers: c.Customers,
		orders:    c.Orders,
		pending:   c.PendingNotifications,
	}
}

var _ Repository = (*MongoRepository)(nil)

// orderDoc is the stored shape of an order; money goes in as Decimal128.
type orderDoc struct {
	ID                 string                  `bson:"_id"`
	Customer           models.CustomerSnapshot `bson:"customer"`
	Items              []itemDoc               `bson:"items"`
	Total              primitive.Decimal128    `bson:"total"`
	Currency           string                  `bson:"currency"`
	PaymentMethod      string                  `bson:"paymentMethod"`
	Status             string                  `bson:"status"`
	PaymentReferenceID string                  `bson:"paymentReferenceId,omitempty"`
	PaymentURL         string                  `bson:"paymentUrl,omitempty"`
	PaymentID          string                  `bson:"paymentId,omitempty"`
	NeedsReview        bool                    `bson:"needsReview"`
	ReviewReason       string                  `bson:"reviewReason,omitempty"`
	CreatedAt          time.Time               `bson:"createdAt"`
	UpdatedAt          time.Time               `bson:"updatedAt"`
}

type itemDoc struct {
	ID        string               `bson:"id"`
	Title     string               `bson:"title"`
	UnitPrice primitive.Decimal128 `bson:"unitPrice"`
	Quantity  int                  `bson:"quantity"`
	FileURL   string               `bson:"fileUrl,omitempty"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) decimal.Decimal {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.Zero
	}
	return v
}

func toOrderDoc(o *models.Order) (*orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return nil, fmt.Errorf("encode total: %w", err)
	}
	items := make([]itemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("encode price of %s: %w", it.ID, err)
		}
		items = append(items, itemDoc{
			ID:        it.ID,
			Title:     it.Title,
			UnitPrice: price,
			Quantity:  it.Quantity,
			FileURL:   it.FileURL,
		})
	}
	return &orderDoc{
		ID:                 o.ID,
		Customer:           o.Customer,
		Items:              items,
		Total:              total,
		Currency:           o.Currency,
		PaymentMethod:      string(o.PaymentMethod),
		Status:             string(o.Status),
		PaymentReferenceID: o.PaymentReferenceID,
		PaymentURL:         o.PaymentURL,
		PaymentID:          o.PaymentID,
		NeedsReview:        o.NeedsReview,
		ReviewReason:       o.ReviewReason,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}, nil
}

func (d *orderDoc) order() models.Order {
	items := make([]models.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, models.OrderItem{
			ID:        it.ID,
			Title:     it.Title,
			UnitPrice: fromDecimal128(it.UnitPrice),
			Quantity:  it.Quantity,
			FileURL:   it.FileURL,
		})
	}
	return models.Order{
		ID:                 d.ID,
		Customer:           d.Customer,
		Items:              items,
		Total:              fromDecimal128(d.Total),
		Currency:           d.Currency,
		PaymentMethod:      models.PaymentMethod(d.PaymentMethod),
		Status:             models.OrderStatus(d.Status),
		PaymentReferenceID: d.PaymentReferenceID,
		PaymentURL:         d.PaymentURL,
		PaymentID:          d.PaymentID,
		NeedsReview:        d.NeedsReview,
		ReviewReason:       d.ReviewReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// EnsureIndexes creates the lookup and expiry indexes the repository relies on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.customers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create customer email index: %w", err)
	}

	if _, err := r.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "paymentReferenceId", Value: 1}}},
		{Keys: bson.D{{Key: "needsReview", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	if _, err := r.pending.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "referenceKey", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}); err != nil {
		return fmt.Errorf("failed to create pending notification indexes: %w", err)
	}
	return nil
}

// classify maps driver errors onto the repository's error set.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsNetworkError(err),
		mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, mongo.ErrClientDisconnected):
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *MongoRepository) UpsertCustomer(ctx context.Context, c models.Customer) (*models.Customer, error) {
	now := time.Now().UTC()
	set := bson.M{
		"name":       c.Name,
		"phone":      c.Phone,
		"personType": c.PersonType,
		"updatedAt":  now,
	}
	if c.TaxID != "" {
		set["taxId"] = c.TaxID
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":       uuid.New().String(),
			"status":    models.CustomerSuspended,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.Customer
	err := r.customers.FindOneAndUpdate(ctx, bson.M{"email": c.Email}, update, opts).Decode(&out)
	if err != nil {
		return nil, classify("upsert customer", err)
	}
	return &out, nil
}

func (r *MongoRepository) MarkCustomerPurchased(ctx context.Context, email, orderID string) error {
	res, err := r.customers.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"status":      models.CustomerPurchased,
		"lastOrderId": orderID,
		"updatedAt":   time.Now().UTC(),
	}})
	if err != nil {
		return classify("mark customer purchased", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	o.Status = models.OrderPending
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt

	doc, err := toOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.orders.InsertOne(ctx, doc); err != nil {
		return classify("create order", err)
	}
	return nil
}

func (r *MongoRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var doc orderDoc
	if err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("get order", err)
	}
	o := doc.order()
	return &o, nil
}

func (r *MongoRepository) AttachPaymentReference(ctx context.Context, orderID, refID, paymentURL string) error {
	filter := bson.M{
		"_id":    orderID,
		"status": models.OrderPending,
		"$or": bson.A{
			bson.M{"paymentReferenceId": bson.M{"$exists": false}},
			bson.M{"paymentReferenceId": ""},
			bson.M{"paymentReferenceId": refID},
		},
	}
	update := bson.M{"$set": bson.M{
		"paymentReferenceId": refID,
		"paymentUrl":         paymentURL,
		"updatedAt":          time.Now().UTC(),
	}}
	res, err := r.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return classify("attach payment reference", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched; find out why.
	current, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if current.Status != models.OrderPending {
		return ErrNotPending
	}
	return ErrReferenceConflict
}

func (r *MongoRepository) FindOrdersByPaymentReference(ctx context.Context, refID string) ([]models.Order, error) {
	out := make([]models.Order, 0)
	if refID == "" {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.orders.Find(ctx, bson.M{"paymentReferenceId": refID}, opts)
	if err != nil {
		return nil, classify("find orders by reference", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		out = append(out, doc.order())
	}
	if err := cursor.Err(); err != nil {
		return nil, classify("find orders by reference", err)
	}
	return out, nil
}

func (r *MongoRepository) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, paymentID string) (bool, error) {
	if !status.Terminal() {
		return false, ErrInvalidStatus
	}
	set := bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}
	if paymentID != "" {
		set["paymentId"] = paymentID
	}
	res, err := r.orders.UpdateOne(ctx,
		bson.M{"_id": orderID, "status": models.OrderPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, classify("update order status", err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	current, err := r.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if current.Status == status {
		return false, nil
	}
	return false, ErrTerminalStatus
}

func (r *MongoRepository) FlagForReview(ctx context.Context, orderIDs []string, reason string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	_, err := r.orders.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": orderIDs}},
		bson.M{"$set": bson.M{
			"needsReview":  true,
			"reviewReason": reason,
			"updatedAt":    time.Now().UTC(),
		}},
	)
	return classify("flag orders for review", err)
}

func (r *MongoRepository) ListFlagged(ctx context.Context) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}).SetLimit(200)
	cursor, err := r.orders.Find(ctx, bson.M{"needsReview": true}, opts)
	if err != nil {
		return nil, classify("list flagged orders", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify("list flagged orders", err)
	}
	out := make([]models.Order, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].order())
	}
	return out, nil
}

func (r *MongoRepository) SavePendingNotification(ctx context.Context, n models.PendingNotification) error {
	_, err := r.pending.UpdateOne(ctx,
		bson.M{"paymentId": n.PaymentID},
		bson.M{"$set": n},
		options.Update().SetUpsert(true),
	)
	return classify("save pending notification", err)
}

// TakePendingNotifications removes and returns the unexpired notifications
// buffered for refID. The TTL index only sweeps about once a minute, so
// expiry is also checked here.
func (r *MongoRepository) TakePendingNotifications(ctx context.Context, refID string) ([]models.PendingNotification, error) {
	out := make([]models.PendingNotification, 0)
	now := time.Now().UTC()
	filter := bson.M{"referenceKey": refID, "expiresAt": bson.M{"$gt": now}}
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "receivedAt", Value: 1}})

	for {
		var n models.PendingNotification
		err := r.pending.FindOneAndDelete(ctx, filter, opts).Decode(&n)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, nil
		}
		if err != nil {
			return out, classify("take pending notifications", err)
		}
		out = append(out, n)
	}
}
