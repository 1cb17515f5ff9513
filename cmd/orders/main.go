package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/obs"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/productclient"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := obs.NewLogger(cfg.ServiceName)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, orders.Schema...); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one writer for every order topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(context.Background())

	tokens, err := auth.NewValidator(cfg.AuthMode, cfg.AuthServiceURL, cfg.TokenSecret, cfg.TokenAlgorithm, cfg.UpstreamTimeout)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	svc := &orders.Service{
		Tokens:   tokens,
		Products: productclient.New(cfg.ProductServiceURL, cfg.UpstreamTimeout),
		Repo:     &orders.Repo{DB: db},
		Events:   prod,
		Policy: orders.Policy{
			StockGuard:           cfg.StockGuard,
			RestoreStockOnDelete: cfg.RestoreStockOnDelete,
			Compensate:           cfg.Compensate,
		},
		Log:    logger,
		Source: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc, Idem: redisx.Idempotency{RDB: rdb}}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	log.Printf("policy: stock_guard=%t restore_on_delete=%t compensate=%t auth=%s",
		cfg.StockGuard, cfg.RestoreStockOnDelete, cfg.Compensate, cfg.AuthMode)

	if err := httpx.Serve(ctx, srv, cfg.ShutdownTimeout); err != nil {
		log.Printf("server: %v", err)
	}

	log.Println("shutting down...")
	prod.Close()      // flush pending events & close writer
	prod.WaitClosed() // drain
}
