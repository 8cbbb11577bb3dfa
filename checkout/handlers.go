package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"

	"github.com/Papel-hub/talentoStore/cart"
	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
	"github.com/Papel-hub/talentoStore/utils"
)

// ItemInput is an explicitly posted order line. Price is accepted under
// either "unitPrice" or the storefront's "price".
type ItemInput struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	FileURL   string          `json:"fileUrl"`
}

// Lines converts posted items into cart lines. A missing quantity counts as 1.
func Lines(items []ItemInput) []models.CartLine {
	lines := make([]models.CartLine, 0, len(items))
	for _, it := range items {
		price := it.UnitPrice
		if price.IsZero() {
			price = it.Price
		}
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		lines = append(lines, models.CartLine{
			ProductID: it.ID,
			Title:     it.Title,
			UnitPrice: price,
			Quantity:  qty,
			FileURL:   it.FileURL,
		})
	}
	return lines
}

// OrderRequest is the body of an order submission.
type OrderRequest struct {
	Customer      CustomerInput `json:"customer"`
	PaymentMethod string        `json:"paymentMethod"`
	Items         []ItemInput   `json:"items,omitempty"`
}

type Handler struct {
	builder  *Builder
	sessions *cart.Sessions
}

func NewHandler(builder *Builder, sessions *cart.Sessions) *Handler {
	return &Handler{builder: builder, sessions: sessions}
}

// RespondError maps checkout failures onto HTTP statuses.
func RespondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondWithJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
	case orders.IsTransient(err):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, try again")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}

// Identify handles checkout step 1.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Println("Identify decode error:", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	c, err := h.builder.Identify(ctx, in)
	if err != nil {
		log.Println("Identify error:", err)
		RespondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"email":  c.Email,
		"status": c.Status,
	})
}

// PlaceOrder builds a pending order from posted items or the session cart.
// The session cart is cleared once the order is stored.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Println("PlaceOrder decode error:", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid order payload")
		return
	}

	order, err := h.Submit(ctx, r, req)
	if err != nil {
		log.Println("PlaceOrder error:", err)
		RespondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"orderId": order.ID,
		"order":   order.View(),
	})
}

// Submit builds the order for req. Without explicit items the cart of the
// request's session is used and emptied afterwards.
func (h *Handler) Submit(ctx context.Context, r *http.Request, req OrderRequest) (*models.Order, error) {
	if len(req.Items) > 0 {
		return h.builder.Build(ctx, Lines(req.Items), req.Customer, req.PaymentMethod)
	}

	sessionID, ok := cart.SessionID(r)
	if !ok {
		return nil, invalid("cart", "is empty")
	}
	store, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	order, err := h.builder.Build(ctx, store.Lines(), req.Customer, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := store.Clear(ctx); err != nil {
		log.Printf("PlaceOrder: order %s stored but cart %s not cleared: %v", order.ID, sessionID, err)
	}
	return order, nil
}
