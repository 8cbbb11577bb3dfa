package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/products"
)

func newCartRouter() *httprouter.Router {
	h := NewHandler(MemorySessions(), products.NewMemoryCatalog(cursoA, cursoB))
	router := httprouter.New()
	router.GET("/api/cart", h.GetCart)
	router.POST("/api/cart/items", h.AddToCart)
	router.PUT("/api/cart/items/:productId", h.UpdateCartItem)
	router.DELETE("/api/cart/items/:productId", h.RemoveCartItem)
	router.DELETE("/api/cart", h.ClearCart)
	return router
}

func do(t *testing.T, router http.Handler, method, path, session, body string) (*httptest.ResponseRecorder, cartResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp cartResponse
	if rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCartHandlers_Flow(t *testing.T) {
	router := newCartRouter()

	rec, resp := do(t, router, http.MethodGet, "/api/cart", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, session)
	assert.Empty(t, resp.Lines)
	assert.Equal(t, "0.00", resp.Total)

	rec, resp = do(t, router, http.MethodPost, "/api/cart/items", session, `{"productId":"curso-a","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, session, rec.Header().Get(SessionHeader))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "200.00", resp.Total)
	assert.True(t, resp.IsOpen)

	_, resp = do(t, router, http.MethodPost, "/api/cart/items", session, `{"productId":"curso-b"}`)
	assert.Equal(t, "249.90", resp.Total)

	_, resp = do(t, router, http.MethodPut, "/api/cart/items/curso-b", session, `{"quantity":3}`)
	assert.Equal(t, 5, resp.Count)

	_, resp = do(t, router, http.MethodDelete, "/api/cart/items/curso-a", session, "")
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "curso-b", resp.Lines[0].ProductID)

	_, resp = do(t, router, http.MethodGet, "/api/cart", session, "")
	assert.Equal(t, 3, resp.Count, "cart survives across requests")

	_, resp = do(t, router, http.MethodDelete, "/api/cart", session, "")
	assert.Empty(t, resp.Lines)
}

func TestCartHandlers_Errors(t *testing.T) {
	router := newCartRouter()

	rec, _ := do(t, router, http.MethodPost, "/api/cart/items", "", `{"productId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/cart/items", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPut, "/api/cart/items/curso-a", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
