package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sailsteel/order-desk/internal/config"
	kafkax "github.com/sailsteel/order-desk/internal/kafka"
	"github.com/sailsteel/order-desk/internal/orders"
	"github.com/sailsteel/order-desk/internal/postgres"
	"github.com/sailsteel/order-desk/internal/redisx"
	"github.com/sailsteel/order-desk/internal/stockfeed"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	// DB: the feed only makes sense against the shared Postgres store
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 30)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := orders.NewRepo(db)
	if err := repo.Initialize(ctx); err != nil {
		log.Fatalf("db init: %v", err)
	}

	svc := &stockfeed.Service{Stock: repo}

	// Redis
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		svc.Dedup = stockfeed.RedisDeduper{RDB: rdb}
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StockFeedGroup, orders.TopicStockLevelUpdated, cfg.StockFeedWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("stockfeed consumer started: group=%s topic=%s workers=%d",
			cfg.StockFeedGroup, orders.TopicStockLevelUpdated, cfg.StockFeedWorkers)
		if err := cons.Start(ctx, svc.HandleStockLevel); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
}
