package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestLimitPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	})

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/mercado-pago", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h(rec, req, nil)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"), "buckets are per client")
}

func TestIdleVisitorsAreSwept(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(60, 1)
	rl.now = func() time.Time { return now }
	rl.getLimiter("a")
	now = now.Add(idleAfter + time.Second)
	rl.getLimiter("b")
	assert.Len(t, rl.visitors, 1)
	_, ok := rl.visitors["b"]
	assert.True(t, ok)
}
