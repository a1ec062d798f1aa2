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

	"github.com/gpstore/checkout/internal/cart"
	"github.com/gpstore/checkout/internal/catalog"
	"github.com/gpstore/checkout/internal/checkout"
	"github.com/gpstore/checkout/internal/config"
	"github.com/gpstore/checkout/internal/history"
	"github.com/gpstore/checkout/internal/httpx"
	"github.com/gpstore/checkout/internal/inventory"
	"github.com/gpstore/checkout/internal/kafkax"
	"github.com/gpstore/checkout/internal/orders"
	"github.com/gpstore/checkout/internal/postgres"
	"github.com/gpstore/checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("db schema: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	placedProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
	placedProd.Start()
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	statusProd.Start()

	// Repos
	orderRepo := &orders.Repo{DB: db}
	historyRepo := &history.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	cartRepo := &cart.Repo{DB: db}
	guard := &inventory.Guard{DB: db}

	svc := &checkout.Service{
		Carts:       cartRepo,
		Catalog:     catalogRepo,
		Inventory:   guard,
		Orders:      orderRepo,
		History:     historyRepo,
		Producer:    placedProd,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	ch := &httpx.CheckoutHandler{Service: svc}
	ch.Register(router)
	oh := &httpx.OrdersHandler{
		Orders:    orderRepo,
		History:   historyRepo,
		Inventory: guard,
		Redis:     rdb,
		Producer:  statusProd,
		Service:   cfg.ServiceName,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
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

	placedProd.Close() // flush & close writers
	statusProd.Close()
	placedProd.WaitClosed()
	statusProd.WaitClosed()
}
