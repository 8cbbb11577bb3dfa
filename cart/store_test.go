package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/models"
)

var (
	cursoA = models.Product{ID: "curso-a", Title: "Curso A", Price: decimal.RequireFromString("100.00")}
	cursoB = models.Product{ID: "curso-b", Title: "Curso B", Price: decimal.RequireFromString("49.90")}
)

func TestStore_AddMergesLines(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, NewMemoryStorage(nil))
	require.NoError(t, err)
	assert.False(t, s.IsOpen())

	require.NoError(t, s.Add(ctx, cursoA, 1))
	require.NoError(t, s.Add(ctx, cursoA, 1))
	require.NoError(t, s.Add(ctx, cursoB, 0))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "curso-a", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity, "quantity defaults to 1")
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, "249.90", s.Total().StringFixed(2))
	assert.True(t, s.IsOpen())
}

func TestStore_SetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, NewMemoryStorage(nil))
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, cursoA, 1))
	require.NoError(t, s.Add(ctx, cursoB, 1))

	require.NoError(t, s.SetQuantity(ctx, "curso-a", 5))
	assert.Equal(t, 6, s.Count())

	require.NoError(t, s.SetQuantity(ctx, "curso-a", 0))
	assert.Len(t, s.Lines(), 1)

	require.NoError(t, s.Remove(ctx, "curso-b"))
	require.NoError(t, s.Remove(ctx, "curso-b"), "removing twice is fine")
	assert.Empty(t, s.Lines())
	assert.True(t, s.Total().IsZero())

	require.NoError(t, s.SetQuantity(ctx, "unknown", 3))
	assert.Empty(t, s.Lines(), "setting quantity of a missing line adds nothing")
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(nil)
	s, err := Open(ctx, storage)
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx, cursoA, 2))
	var saved []map[string]interface{}
	require.NoError(t, json.Unmarshal(storage.Bytes(), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "curso-a", saved[0]["productId"])
	assert.Equal(t, float64(2), saved[0]["quantity"])

	reopened, err := Open(ctx, storage)
	require.NoError(t, err)
	require.Len(t, reopened.Lines(), 1)
	assert.Equal(t, "curso-a", reopened.Lines()[0].ProductID)
	assert.True(t, s.Total().Equal(reopened.Total()))
	assert.False(t, reopened.IsOpen(), "drawer state is not persisted")

	require.NoError(t, s.Clear(ctx))
	assert.JSONEq(t, `[]`, string(storage.Bytes()))
}

func TestOpen_DiscardsMalformedData(t *testing.T) {
	cases := map[string]string{
		"not json":      `{{{`,
		"wrong shape":   `{"productId":"curso-a"}`,
		"zero quantity": `[{"productId":"curso-a","unitPrice":"10","quantity":0}]`,
		"no product id": `[{"unitPrice":"10","quantity":1}]`,
		"duplicate":     `[{"productId":"a","unitPrice":"1","quantity":1},{"productId":"a","unitPrice":"1","quantity":1}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Open(context.Background(), NewMemoryStorage([]byte(payload)))
			require.NoError(t, err)
			assert.Empty(t, s.Lines())
			assert.Equal(t, 0, s.Count())
		})
	}
}

func TestOpen_RestoresValidData(t *testing.T) {
	payload := `[{"productId":"curso-a","title":"Curso A","unitPrice":100,"quantity":2},` +
		`{"productId":"curso-b","title":"Curso B","unitPrice":"49.90","quantity":1}]`
	s, err := Open(context.Background(), NewMemoryStorage([]byte(payload)))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, "249.90", s.Total().StringFixed(2))
}

func TestRedisStorage_SlidingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer conn.Close()

	ctx := context.Background()
	storage := NewRedisStorage(conn, "sess-1")

	data, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	s, err := Open(ctx, storage)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, cursoA, 1))
	assert.True(t, mr.Exists("cart:sess-1"))

	mr.FastForward(20 * 24 * time.Hour)
	_, err = storage.Load(ctx)
	require.NoError(t, err)
	mr.FastForward(20 * 24 * time.Hour)

	reopened, err := Open(ctx, storage)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count(), "reads refresh the expiry")

	mr.FastForward(31 * 24 * time.Hour)
	gone, err := Open(ctx, storage)
	require.NoError(t, err)
	assert.Empty(t, gone.Lines())
}
