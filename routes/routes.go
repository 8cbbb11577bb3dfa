package routes

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/admin"
	"github.com/Papel-hub/talentoStore/cart"
	"github.com/Papel-hub/talentoStore/checkout"
	"github.com/Papel-hub/talentoStore/middleware"
	"github.com/Papel-hub/talentoStore/orderfeed"
	"github.com/Papel-hub/talentoStore/pay"
	"github.com/Papel-hub/talentoStore/products"
	"github.com/Papel-hub/talentoStore/ratelim"
)

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func AddProductRoutes(router *httprouter.Router, h *products.Handler) {
	router.GET("/api/products/:id", h.GetProductDetails)
}

func AddCartRoutes(router *httprouter.Router, h *cart.Handler) {
	router.GET("/api/cart", h.GetCart)
	router.DELETE("/api/cart", h.ClearCart)
	router.POST("/api/cart/items", h.AddToCart)
	router.PUT("/api/cart/items/:productId", h.UpdateCartItem)
	router.DELETE("/api/cart/items/:productId", h.RemoveCartItem)
}

func AddCheckoutRoutes(router *httprouter.Router, h *checkout.Handler, rateLimiter *ratelim.RateLimiter, idem pay.IdempotencyStore) {
	router.POST("/api/checkout/identify", rateLimiter.Limit(h.Identify))
	router.POST("/api/checkout/orders", rateLimiter.Limit(pay.Idempotent(idem, h.PlaceOrder)))
}

func AddPayRoutes(router *httprouter.Router, h *pay.Handler, rateLimiter *ratelim.RateLimiter, idem pay.IdempotencyStore) {
	router.POST("/api/mercado-pago", rateLimiter.Limit(pay.Idempotent(idem, h.CreatePreference)))
	// The gateway retries on its own schedule; it is not rate limited.
	router.POST("/api/webhooks/mercadopago", h.Webhook)
}

func AddOrderRoutes(router *httprouter.Router, h *orderfeed.Handler) {
	router.GET("/api/orders/:id", h.GetOrder)
	router.GET("/api/orders/:id/ws", h.Watch)
}

func AddAdminRoutes(router *httprouter.Router, h *admin.Handler, rateLimiter *ratelim.RateLimiter, secret []byte) {
	router.POST("/api/admin/login", rateLimiter.Limit(h.Login))
	router.GET("/api/admin/orders/review", middleware.Chain(
		middleware.Authenticate(secret),
		middleware.RequireRoles(admin.Role),
	)(h.ReviewQueue))
}
