package products

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/utils"
)

type Handler struct {
	catalog Lookup
}

func NewHandler(catalog Lookup) *Handler {
	return &Handler{catalog: catalog}
}

// GetProductDetails returns one catalog entry.
func (h *Handler) GetProductDetails(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, ps.ByName("id"))
	if errors.Is(err, ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		log.Println("GetProductDetails error:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load product")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, product)
}
