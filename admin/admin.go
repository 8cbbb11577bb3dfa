package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"github.com/Papel-hub/talentoStore/middleware"
	"github.com/Papel-hub/talentoStore/models"
	"github.com/Papel-hub/talentoStore/orders"
	"github.com/Papel-hub/talentoStore/utils"
)

const (
	tokenTTL = 12 * time.Hour
	// Role carried by admin tokens.
	Role = "admin"
)

type Handler struct {
	repo         orders.Repository
	passwordHash []byte
	secret       []byte
}

func NewHandler(repo orders.Repository, passwordHash string, secret []byte) *Handler {
	return &Handler{repo: repo, passwordHash: []byte(passwordHash), secret: secret}
}

// Login exchanges the admin password for a bearer token.
//
// Endpoint: POST /api/admin/login {"password": "..."}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Password is required")
		return
	}
	if len(h.passwordHash) == 0 || len(h.secret) == 0 {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Admin login is not configured")
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(body.Password)); err != nil {
		log.Printf("Admin login failed from %s", utils.ClientIP(r))
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := middleware.IssueToken(h.secret, "admin", []string{Role}, tokenTTL)
	if err != nil {
		log.Println("Admin token error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresIn": int(tokenTTL.Seconds()),
	})
}

// ReviewQueue lists orders flagged by payment reconciliation.
//
// Endpoint: GET /api/admin/orders/review
func (h *Handler) ReviewQueue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	flagged, err := h.repo.ListFlagged(ctx)
	if err != nil {
		log.Println("ReviewQueue error:", err)
		if orders.IsTransient(err) {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable, try again")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch flagged orders")
		return
	}

	type reviewItem struct {
		models.OrderView
		Email              string `json:"email"`
		PaymentReferenceID string `json:"paymentReferenceId,omitempty"`
		PaymentID          string `json:"paymentId,omitempty"`
		ReviewReason       string `json:"reviewReason"`
	}
	out := make([]reviewItem, 0, len(flagged))
	for _, o := range flagged {
		out = append(out, reviewItem{
			OrderView:          o.View(),
			Email:              o.Customer.Email,
			PaymentReferenceID: o.PaymentReferenceID,
			PaymentID:          o.PaymentID,
			ReviewReason:       o.ReviewReason,
		})
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"orders": out})
}
