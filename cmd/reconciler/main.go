package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/obs"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/productclient"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := obs.NewLogger(cfg.ServiceName + "-reconciler")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	iss, err := auth.NewIssuer(cfg.TokenSecret, cfg.TokenAlgorithm, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	svc := &inventory.Service{
		Products: productclient.New(cfg.ProductServiceURL, cfg.UpstreamTimeout),
		Dedup:    redisx.Dedup{RDB: rdb, Service: "reconciler"},
		Issuer:   iss,
		Guard:    true,
		Attempts: 5,
		Log:      logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup, orders.TopicStockCompensation, cfg.ReconcilerWorkers)
	health := &http.Server{Addr: cfg.HTTPAddr, Handler: httpx.NewRouter()}

	// a consumer that dies takes /healthz down with it
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("reconciler started: group=%s topic=%s workers=%d",
			cfg.ReconcilerGroup, orders.TopicStockCompensation, cfg.ReconcilerWorkers)
		if err := cons.Start(gctx, svc.HandleCompensation); err != nil {
			return fmt.Errorf("consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error { return httpx.Serve(gctx, health, cfg.ShutdownTimeout) })
	if err := g.Wait(); err != nil {
		log.Printf("reconciler exit: %v", err)
	}
	log.Println("reconciler stopped")
}
