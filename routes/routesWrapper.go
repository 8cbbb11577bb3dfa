package routes

import (
	"github.com/julienschmidt/httprouter"

	"github.com/Papel-hub/talentoStore/admin"
	"github.com/Papel-hub/talentoStore/cart"
	"github.com/Papel-hub/talentoStore/checkout"
	"github.com/Papel-hub/talentoStore/orderfeed"
	"github.com/Papel-hub/talentoStore/pay"
	"github.com/Papel-hub/talentoStore/products"
	"github.com/Papel-hub/talentoStore/ratelim"
)

// Handlers bundles everything the router serves.
type Handlers struct {
	Products    *products.Handler
	Cart        *cart.Handler
	Checkout    *checkout.Handler
	Pay         *pay.Handler
	Orders      *orderfeed.Handler
	Admin       *admin.Handler
	Idempotency pay.IdempotencyStore
	JWTSecret   []byte
}

func RoutesWrapper(router *httprouter.Router, h Handlers, rateLimiter *ratelim.RateLimiter) {
	router.GET("/health", Index)
	AddProductRoutes(router, h.Products)
	AddCartRoutes(router, h.Cart)
	AddCheckoutRoutes(router, h.Checkout, rateLimiter, h.Idempotency)
	AddPayRoutes(router, h.Pay, rateLimiter, h.Idempotency)
	AddOrderRoutes(router, h.Orders)
	AddAdminRoutes(router, h.Admin, rateLimiter, h.JWTSecret)
}
