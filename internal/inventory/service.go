// Package inventory reconciles product stock that the order service moved but
// could not account for in its own table.
package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/productclient"
	kafkago "github.com/segmentio/kafka-go"
)

type deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type tokenIssuer interface {
	Issue(userID int64, email string) (string, time.Time, error)
}

type Service struct {
	Products orders.ProductStore
	Dedup    deduper
	// Issuer mints a token for the order's owner so the product service
	// accepts the correction.
	Issuer   tokenIssuer
	Guard    bool
	Attempts int
	Log      *slog.Logger
}

// HandleCompensation is the consumer handler for order.stock.compensation.
// Returning an error makes the consumer retry the same message with backoff.
func (s *Service) HandleCompensation(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		s.Log.Error("compensation_undecodable", "offset", m.Offset, "error", err)
		return nil // poison message, skip
	}
	if env.EventType != orders.EventStockCompensationRequested {
		return nil
	}

	first, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		s.Log.Info("compensation_duplicate", "event_id", env.EventID)
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StockCompensationPayload](env.Payload)
	if err != nil {
		s.Log.Error("compensation_undecodable", "event_id", env.EventID, "error", err)
		return nil
	}
	log := s.Log.With(
		"event_id", env.EventID, "trace_id", env.TraceID, "operation", p.Operation,
		"order_id", p.OrderID, "product_id", p.ProductID, "stock_delta", p.StockDelta)

	tok, _, err := s.Issuer.Issue(p.UserID, "reconciler")
	if err != nil {
		s.release(ctx, env.EventID)
		return err
	}
	ctx = auth.WithCredential(ctx, "Bearer "+tok)

	updated, err := orders.AdjustStock(ctx, s.Products, p.ProductID, p.StockDelta, s.Guard, s.Attempts)
	switch {
	case err == nil:
		log.Info("stock_reconciled", "stock", updated.Stock)
		return nil
	case errors.Is(err, productclient.ErrNotFound), errors.Is(err, orders.ErrNegativeStock),
		errors.Is(err, productclient.ErrInvalid):
		// nothing left to correct; an operator has to look at it
		log.Error("stock_reconcile_abandoned", "error", err)
		return nil
	default:
		log.Warn("stock_reconcile_failed", "error", err)
		s.release(ctx, env.EventID)
		return err
	}
}

func (s *Service) release(ctx context.Context, eventID string) {
	if err := s.Dedup.Release(context.WithoutCancel(ctx), eventID); err != nil {
		s.Log.Error("dedup_release_failed", "event_id", eventID, "error", err)
	}
}
