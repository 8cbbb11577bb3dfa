package pay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/checkout"
	"github.com/Papel-hub/talentoStore/orders"
	"github.com/Papel-hub/talentoStore/utils"
)

type Handler struct {
	initiator  *Initiator
	reconciler *Reconciler
	checkout   *checkout.Handler
}

func NewHandler(initiator *Initiator, reconciler *Reconciler, co *checkout.Handler) *Handler {
	return &Handler{initiator: initiator, reconciler: reconciler, checkout: co}
}

// preferenceRequest accepts either an existing order id or a full order body.
type preferenceRequest struct {
	OrderID string `json:"orderId"`
	checkout.OrderRequest
}

// respondPaymentError includes orderId when an order exists, so the client
// can retry payment for that order instead of placing a new one.
func respondPaymentError(w http.ResponseWriter, status int, msg, orderID string) {
	body := map[string]interface{}{
		"error":   msg,
		"success": false,
	}
	if orderID != "" {
		body["orderId"] = orderID
	}
	utils.RespondWithJSON(w, status, body)
}

// CreatePreference handles POST /api/mercado-pago.
func (h *Handler) CreatePreference(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Println("CreatePreference decode error:", err)
		respondPaymentError(w, http.StatusBadRequest, "Invalid payment payload", "")
		return
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = resumedOrder(ctx)
	}
	if orderID == "" {
		order, err := h.checkout.Submit(ctx, r, req.OrderRequest)
		if err != nil {
			log.Println("CreatePreference order error:", err)
			checkout.RespondError(w, err)
			return
		}
		orderID = order.ID
		rememberOrder(ctx, orderID)
	}

	redirect, err := h.initiator.Initiate(ctx, orderID)
	if err != nil {
		log.Printf("CreatePreference: order %s: %v", orderID, err)
		var initErr *PaymentInitiationError
		switch {
		case errors.As(err, &initErr):
			respondPaymentError(w, http.StatusBadGateway, "Payment provider unavailable, try again", orderID)
		case errors.Is(err, orders.ErrNotFound):
			respondPaymentError(w, http.StatusNotFound, "Order not found", "")
		case errors.Is(err, ErrOrderNotPending):
			respondPaymentError(w, http.StatusConflict, "Order is no longer pending", orderID)
		case orders.IsTransient(err):
			respondPaymentError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, try again", orderID)
		default:
			respondPaymentError(w, http.StatusInternalServerError, "Could not start payment", orderID)
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"orderId":     redirect.OrderID,
		"redirectUrl": redirect.URL,
		"initPoint":   redirect.URL,
	})
}

// Webhook handles POST /api/webhooks/mercadopago. Anything but a retryable
// failure is acknowledged so the gateway stops redelivering.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		log.Println("Webhook read error:", err)
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]bool{"received": false})
		return
	}

	n := ParseNotification(body, r.URL.Query())
	err = h.reconciler.Handle(ctx, n)
	switch {
	case err == nil:
	case IsRetryable(err):
		log.Printf("Webhook: payment %s will be retried: %v", n.DataID, err)
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]bool{"received": false})
		return
	default:
		log.Printf("Webhook: payment %s acknowledged with error: %v", n.DataID, err)
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
