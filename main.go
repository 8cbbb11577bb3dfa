package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/Papel-hub/talentoStore/admin"
	"github.com/Papel-hub/talentoStore/cart"
	"github.com/Papel-hub/talentoStore/checkout"
	"github.com/Papel-hub/talentoStore/config"
	"github.com/Papel-hub/talentoStore/db"
	"github.com/Papel-hub/talentoStore/mercadopago"
	"github.com/Papel-hub/talentoStore/middleware"
	"github.com/Papel-hub/talentoStore/mq"
	"github.com/Papel-hub/talentoStore/notify"
	"github.com/Papel-hub/talentoStore/orderfeed"
	"github.com/Papel-hub/talentoStore/orders"
	"github.com/Papel-hub/talentoStore/pay"
	"github.com/Papel-hub/talentoStore/products"
	"github.com/Papel-hub/talentoStore/ratelim"
	"github.com/Papel-hub/talentoStore/rdx"
	"github.com/Papel-hub/talentoStore/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelStart()

	cols, err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	rconn, err := rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	repo := orders.NewMongoRepository(cols)
	if err := repo.EnsureIndexes(startCtx); err != nil {
		log.Fatalf("❌ %v", err)
	}
	idem := pay.NewMongoIdempotencyStore(cols.Idempotency)
	if err := idem.EnsureIndexes(startCtx); err != nil {
		log.Fatalf("❌ idempotency indexes: %v", err)
	}

	catalog := products.NewCachedCatalog(
		products.NewMongoCatalog(cols.Products),
		rdx.NewCache(rconn, "product:", 5*time.Minute),
	)
	sessions := cart.RedisSessions(rconn)
	gateway := mercadopago.NewClient(cfg.MercadoPagoBaseURL, cfg.MercadoPagoToken)
	if cfg.MercadoPagoToken == "" {
		log.Println("MERCADO_PAGO_ACCESS_TOKEN not set; payments will fail")
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.MailEnabled() {
		notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFromName)
	}

	publisher := mq.NewPublisher(rconn)
	statusSinks := mq.Fanout{publisher}
	if cfg.AMQPURL != "" {
		amqpConn, amqpPub, err := mq.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		defer amqpConn.Close()
		statusSinks = append(statusSinks, amqpPub)
	}
	reconciler := pay.NewReconciler(repo, gateway, rdx.NewLocker(rconn, "webhook_lock:"), statusSinks, notifier)
	initiator := pay.NewInitiator(repo, gateway, cfg.SiteURL, reconciler)
	checkoutHandler := checkout.NewHandler(checkout.NewBuilder(repo, cfg.Currency), sessions)

	// order status hub, fed from the Redis status channel
	hub := orderfeed.NewHub()
	go hub.Run()
	listenCtx, stopListen := context.WithCancel(context.Background())
	go func() {
		if err := publisher.Listen(listenCtx, hub.Publish); err != nil {
			log.Printf("❌ status listener stopped: %v", err)
		}
	}()

	rateLimiter := ratelim.NewRateLimiter(30, 5)
	router := httprouter.New()
	routes.RoutesWrapper(router, routes.Handlers{
		Products:    products.NewHandler(catalog),
		Cart:        cart.NewHandler(sessions, catalog),
		Checkout:    checkoutHandler,
		Pay:         pay.NewHandler(initiator, reconciler, checkoutHandler),
		Orders:      orderfeed.NewHandler(repo, hub),
		Admin:       admin.NewHandler(repo, cfg.AdminPasswordHash, cfg.JWTSecret),
		Idempotency: idem,
		JWTSecret:   cfg.JWTSecret,
	}, rateLimiter)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", cart.SessionHeader},
		ExposedHeaders:   []string{cart.SessionHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Logging(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Closing order feeds...")
		stopListen()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if err := cols.Close(ctx); err != nil {
		log.Printf("MongoDB disconnect: %v", err)
	}
	if err := rconn.Close(); err != nil {
		log.Printf("Redis close: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
