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
	"github.com/ariefcatur/go-shop-orders/internal/obs"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/products"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	obs.NewLogger(cfg.ServiceName)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, products.Schema...); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	tokens, err := auth.NewValidator(cfg.AuthMode, cfg.AuthServiceURL, cfg.TokenSecret, cfg.TokenAlgorithm, cfg.UpstreamTimeout)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	router := httpx.NewRouter()
	(&httpx.ProductsHandler{Repo: &products.Repo{DB: db}, Tokens: tokens}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if err := httpx.Serve(ctx, srv, cfg.ShutdownTimeout); err != nil {
		log.Printf("server: %v", err)
	}
	log.Println("product service stopped")
}
