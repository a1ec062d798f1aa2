package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gpstore/checkout/internal/catalog"
	"github.com/gpstore/checkout/internal/config"
	"github.com/gpstore/checkout/internal/history"
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
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	proj := &history.Projector{
		Repo:        &history.Repo{DB: db},
		Orders:      &orders.Repo{DB: db},
		Catalog:     &catalog.Repo{DB: db},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-projector",
	}

	// one consumer per topic, same handler
	placed := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderPlaced, cfg.ProjectorWorkers)
	status := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, orders.TopicOrderStatusChanged, cfg.ProjectorWorkers)

	for _, c := range []*kafkax.Consumer{placed, status} {
		c := c
		go func() {
			if err := c.Start(ctx, proj.HandleOrderEvent); err != nil {
				log.Printf("consumer exit: %v", err)
				cancel()
			}
		}()
	}
	log.Printf("projector started: group=%s workers=%d", cfg.ProjectorGroup, cfg.ProjectorWorkers)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down projector...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
