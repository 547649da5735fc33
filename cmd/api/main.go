package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/sailsteel/order-desk/internal/auth"
	"github.com/sailsteel/order-desk/internal/config"
	"github.com/sailsteel/order-desk/internal/httpx"
	"github.com/sailsteel/order-desk/internal/intake"
	kafkax "github.com/sailsteel/order-desk/internal/kafka"
	"github.com/sailsteel/order-desk/internal/orders"
	"github.com/sailsteel/order-desk/internal/postgres"
	"github.com/sailsteel/order-desk/internal/redisx"
	"github.com/sailsteel/order-desk/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 30)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer db.Close()
		store = orders.NewRepo(db)
	case config.DriverMemory:
		store = orders.NewMemoryStore(orders.DemoStock())
	default:
		log.Fatalf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if err := store.Initialize(ctx); err != nil {
		// requests retry initialization, so keep serving
		log.Printf("store init: %v", err)
	}

	svc := intake.NewService(store, store, cfg.ServiceName)

	// Redis
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		svc.Cache = &redisx.OrderCache{RDB: rdb}
	}

	// Kafka producer
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
		prod.Start()
		svc.Publisher = prod
	}

	// Handler
	var verifier auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.HMACVerifier{Secret: []byte(cfg.JWTSecret)}
	} else {
		log.Println("JWT_SECRET not set, every order is recorded as anonymous")
	}
	router := httpx.NewRouter(store)
	httpx.Mount(router, store, &httpx.OrdersHandler{Service: svc, Verifier: verifier})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close() // flush queued events
		prod.WaitClosed()
	}
	if err := shutdownTelemetry(ctx2); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
