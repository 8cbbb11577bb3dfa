package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/products"
	"github.com/Papel-hub/talentoStore/utils"
)

// ProductLookup resolves catalog entries so lines snapshot title and price.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

type Handler struct {
	sessions *Sessions
	catalog  ProductLookup
}

func NewHandler(sessions *Sessions, catalog ProductLookup) *Handler {
	return &Handler{sessions: sessions, catalog: catalog}
}

type cartResponse struct {
	Lines  []models.CartLine `json:"lines"`
	Count  int               `json:"count"`
	Total  string            `json:"total"`
	IsOpen bool              `json:"isOpen"`
}

func view(s *Store) cartResponse {
	return cartResponse{
		Lines:  s.Lines(),
		Count:  s.Count(),
		Total:  s.Total().StringFixed(2),
		IsOpen: s.IsOpen(),
	}
}

// open loads the session cart and echoes the session id back to the client.
func (h *Handler) open(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Store, bool) {
	id, _ := SessionID(r)
	w.Header().Set(SessionHeader, id)

	store, err := h.sessions.Open(ctx, id)
	if err != nil {
		log.Println("Cart open error:", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Cart storage unavailable")
		return nil, false
	}
	return store, true
}

// GetCart returns the session's cart, creating a session when none was sent.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	store, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view(store))
}

// AddToCart snapshots the product from the catalog and adds it to the cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Println("AddToCart decode error:", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.ProductID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}

	product, err := h.catalog.GetProduct(ctx, body.ProductID)
	if errors.Is(err, products.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		log.Println("AddToCart catalog error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to add to cart")
		return
	}

	store, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := store.Add(ctx, *product, body.Quantity); err != nil {
		log.Println("AddToCart save error:", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Failed to add to cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, view(store))
}

// UpdateCartItem sets a line's quantity; zero or less removes it.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Println("UpdateCartItem decode error:", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	store, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := store.SetQuantity(ctx, ps.ByName("productId"), body.Quantity); err != nil {
		log.Println("UpdateCartItem save error:", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Failed to update cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view(store))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	store, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := store.Remove(ctx, ps.ByName("productId")); err != nil {
		log.Println("RemoveCartItem save error:", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Failed to update cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view(store))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	store, ok := h.open(ctx, w, r)
	if !ok {
		return
	}
	if err := store.Clear(ctx); err != nil {
		log.Println("ClearCart save error:", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Failed to clear cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view(store))
}
