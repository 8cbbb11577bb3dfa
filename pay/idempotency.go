package pay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Papel-hub/talentoStore/cart"
	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/utils"
)

const (
	idempotencyWindow = 24 * time.Hour
	// idempotencyLease outlives the handler timeout, so an expired lease
	// means the holder died mid-request.
	idempotencyLease = time.Minute
)

// ErrKeyTaken is returned by Reserve when the key already has a record, and
// by Takeover when the record is still leased or already answered.
var ErrKeyTaken = errors.New("idempotency key already used")

// IdempotencyStore remembers the response given to each Idempotency-Key.
type IdempotencyStore interface {
	// Reserve inserts rec. If the key exists it returns the stored record
	// together with ErrKeyTaken.
	Reserve(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error)
	// Takeover leases an unanswered key whose lease ended before now.
	Takeover(ctx context.Context, key string, now, until time.Time) (*models.IdempotencyRecord, error)
	SaveOrderID(ctx context.Context, key, orderID string) error
	SaveResponse(ctx context.Context, key string, response map[string]interface{}) error
	// Release ends a failed request. A key that never created an order is
	// forgotten; one that did is unlocked so the retry resumes that order.
	Release(ctx context.Context, key string) error
}

// MongoIdempotencyStore keeps records in a collection with a unique key and
// a TTL index.
type MongoIdempotencyStore struct {
	collection *mongo.Collection
}

func NewMongoIdempotencyStore(collection *mongo.Collection) *MongoIdempotencyStore {
	return &MongoIdempotencyStore{collection: collection}
}

// EnsureIndexes creates the necessary indexes (unique key + TTL).
func (s *MongoIdempotencyStore) EnsureIndexes(ctx context.Context) error {
	idxs := []mongo.IndexModel{
		{
			Keys:    bson.M{"key": 1},
			Options: options.Index().SetUnique(true).SetName("unique_key"),
		},
		{
			Keys:    bson.M{"expires_at": 1},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
		},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, idxs)
	return err
}

func (s *MongoIdempotencyStore) Reserve(ctx context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	_, err := s.collection.InsertOne(ctx, rec)
	if err == nil {
		return nil, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}
	var existing models.IdempotencyRecord
	if err := s.collection.FindOne(ctx, bson.M{"key": rec.Key}).Decode(&existing); err != nil {
		return nil, err
	}
	return &existing, ErrKeyTaken
}

func (s *MongoIdempotencyStore) Takeover(ctx context.Context, key string, now, until time.Time) (*models.IdempotencyRecord, error) {
	filter := bson.M{
		"key":      key,
		"response": bson.M{"$exists": false},
		"$or": bson.A{
			bson.M{"locked_until": bson.M{"$lte": now}},
			bson.M{"locked_until": bson.M{"$exists": false}},
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var rec models.IdempotencyRecord
	err := s.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"locked_until": until}}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrKeyTaken
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MongoIdempotencyStore) SaveOrderID(ctx context.Context, key, orderID string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"order_id": orderID}},
	)
	return err
}

func (s *MongoIdempotencyStore) SaveResponse(ctx context.Context, key string, response map[string]interface{}) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"response": response}},
	)
	return err
}

func (s *MongoIdempotencyStore) Release(ctx context.Context, key string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{
		"key":      key,
		"response": bson.M{"$exists": false},
		"order_id": bson.M{"$exists": false},
	})
	if err != nil || res.DeletedCount > 0 {
		return err
	}
	_, err = s.collection.UpdateOne(ctx,
		bson.M{"key": key, "response": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"locked_until": time.Time{}}},
	)
	return err
}

// MemoryIdempotencyStore is the in-process variant for tests.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]models.IdempotencyRecord
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{records: make(map[string]models.IdempotencyRecord)}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, rec models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Key]; ok && existing.ExpiresAt.After(time.Now()) {
		return &existing, ErrKeyTaken
	}
	s.records[rec.Key] = rec
	return nil, nil
}

func (s *MemoryIdempotencyStore) Takeover(_ context.Context, key string, now, until time.Time) (*models.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || rec.Response != nil || rec.LockedUntil.After(now) {
		return nil, ErrKeyTaken
	}
	rec.LockedUntil = until
	s.records[key] = rec
	return &rec, nil
}

func (s *MemoryIdempotencyStore) SaveOrderID(_ context.Context, key, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.OrderID = orderID
		s.records[key] = rec
	}
	return nil
}

func (s *MemoryIdempotencyStore) SaveResponse(_ context.Context, key string, response map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		rec.Response = response
		s.records[key] = rec
	}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	switch {
	case !ok || rec.Response != nil:
	case rec.OrderID == "":
		delete(s.records, key)
	default:
		rec.LockedUntil = time.Time{}
		s.records[key] = rec
	}
	return nil
}

type idempotencyCtxKey struct{}

type idempotencyState struct {
	store   IdempotencyStore
	key     string
	orderID string
}

// resumedOrder returns the order an earlier attempt with the same key created.
func resumedOrder(ctx context.Context) string {
	if st, ok := ctx.Value(idempotencyCtxKey{}).(*idempotencyState); ok {
		return st.orderID
	}
	return ""
}

// rememberOrder ties orderID to the request's Idempotency-Key.
func rememberOrder(ctx context.Context, orderID string) {
	st, ok := ctx.Value(idempotencyCtxKey{}).(*idempotencyState)
	if !ok {
		return
	}
	st.orderID = orderID
	if err := st.store.SaveOrderID(context.WithoutCancel(ctx), st.key, orderID); err != nil {
		log.Printf("Idempotency: failed to save order %s for %s: %v", orderID, st.key, err)
	}
}

func computeRequestHash(r *http.Request, bodyBytes []byte, session string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + session + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// CaptureResponseWriter wraps http.ResponseWriter to capture status and body.
type CaptureResponseWriter struct {
	w           http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func NewCaptureResponseWriter(w http.ResponseWriter) *CaptureResponseWriter {
	return &CaptureResponseWriter{w: w, statusCode: http.StatusOK}
}

func (c *CaptureResponseWriter) Header() http.Header {
	return c.w.Header()
}

func (c *CaptureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.w.WriteHeader(statusCode)
		c.wroteHeader = true
	}
}

func (c *CaptureResponseWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.w.Write(b)
}

func (c *CaptureResponseWriter) Status() int {
	return c.statusCode
}

func (c *CaptureResponseWriter) BodyBytes() []byte {
	return c.buf.Bytes()
}

// Idempotent makes a mutating endpoint safe to replay when the client sends
// an Idempotency-Key:
//   - no header: pass-through.
//   - first use: run the handler and remember a successful response.
//   - reuse with a different body: 409.
//   - reuse after a stored response: replay it.
//   - reuse while the first request still holds its lease: 409, retry later.
//
// Server errors and panics release the key so the client can retry. A lease
// left behind by a dead process expires after idempotencyLease.
func Idempotent(store IdempotencyStore, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next(w, r, ps)
			return
		}

		// Limit body size to 1 MB to prevent memory issues
		bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		session := r.Header.Get(cart.SessionHeader)
		reqHash := computeRequestHash(r, bodyBytes, session)
		now := time.Now()
		rec := models.IdempotencyRecord{
			Key:         key,
			Method:      r.Method,
			Path:        r.URL.Path,
			RequestHash: reqHash,
			LockedUntil: now.Add(idempotencyLease),
			CreatedAt:   now,
			ExpiresAt:   now.Add(idempotencyWindow),
		}

		ctx := r.Context()
		existing, err := store.Reserve(ctx, rec)
		if errors.Is(err, ErrKeyTaken) {
			switch {
			case existing.RequestHash != reqHash:
				utils.RespondWithError(w, http.StatusConflict, "idempotency-key conflict")
				return
			case existing.Response != nil:
				replay(w, existing.Response)
				return
			case existing.LockedUntil.After(now):
				utils.RespondWithError(w, http.StatusConflict, "request with this idempotency-key is still in progress")
				return
			}
			existing, err = store.Takeover(ctx, key, now, rec.LockedUntil)
			if errors.Is(err, ErrKeyTaken) {
				utils.RespondWithError(w, http.StatusConflict, "request with this idempotency-key is still in progress")
				return
			}
		}
		if err != nil {
			log.Println("Idempotency lookup error:", err)
			utils.RespondWithError(w, http.StatusServiceUnavailable, "idempotency lookup error")
			return
		}

		st := &idempotencyState{store: store, key: key}
		if existing != nil {
			st.orderID = existing.OrderID
		}
		serveIdempotent(w, r.WithContext(context.WithValue(ctx, idempotencyCtxKey{}, st)), ps, st, next)
	}
}

func serveIdempotent(w http.ResponseWriter, r *http.Request, ps httprouter.Params, st *idempotencyState, next httprouter.Handle) {
	release := func() {
		if err := st.store.Release(context.WithoutCancel(r.Context()), st.key); err != nil {
			log.Printf("Idempotency: failed to release %s: %v", st.key, err)
		}
	}
	defer func() {
		if p := recover(); p != nil {
			release()
			panic(p)
		}
	}()

	crw := NewCaptureResponseWriter(w)
	next(crw, r, ps)
	if crw.Status() >= 500 {
		release()
		return
	}

	// The body is kept verbatim; nested documents would not survive
	// a BSON round trip as interface{}.
	if err := st.store.SaveResponse(r.Context(), st.key, map[string]interface{}{
		"status": crw.Status(),
		"body":   string(crw.BodyBytes()),
	}); err != nil {
		log.Printf("Idempotency: failed to store response for %s: %v", st.key, err)
	}
}

func replay(w http.ResponseWriter, response map[string]interface{}) {
	status := http.StatusOK
	switch v := response["status"].(type) {
	case float64:
		status = int(v)
	case int32:
		status = int(v)
	case int64:
		status = int(v)
	case int:
		status = v
	}
	body, _ := response["body"].(string)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
