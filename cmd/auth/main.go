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
	if err := postgres.Migrate(ctx, db, auth.UserSchema...); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	iss, err := auth.NewIssuer(cfg.TokenSecret, cfg.TokenAlgorithm, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	verifier, err := auth.NewJWTValidator(cfg.TokenSecret, cfg.TokenAlgorithm)
	if err != nil {
		log.Fatalf("token validator: %v", err)
	}

	router := httpx.NewRouter()
	(&httpx.AuthHandler{Users: &auth.UserRepo{DB: db}, Issuer: iss, Tokens: verifier}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	if err := httpx.Serve(ctx, srv, cfg.ShutdownTimeout); err != nil {
		log.Printf("server: %v", err)
	}
	log.Println("auth service stopped")
}
