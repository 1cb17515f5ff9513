package orders

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/productclient"
	"github.com/go-chi/chi/v5/middleware"
)

const compensationAttempts = 3

// Policy selects how the service closes the consistency gaps between the
// product service and the local order table.
type Policy struct {
	// StockGuard serializes get->update per product and sends the read
	// version as a precondition. Off reproduces the unguarded read-modify-write.
	StockGuard bool
	// RestoreStockOnDelete gives the order quantity back before deleting.
	RestoreStockOnDelete bool
	// Compensate undoes a stock adjustment inline when the order write fails.
	Compensate bool
}

// Service is the order orchestrator. Every operation validates the
// credential before touching anything else.
type Service struct {
	Tokens   auth.Validator
	Products ProductStore
	Repo     Repository
	Events   Publisher // optional
	Policy   Policy
	Log      *slog.Logger
	Source   string // envelope producer name

	locks productLocks
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) authenticate(ctx context.Context, credential string) (auth.Identity, context.Context, error) {
	id, err := s.Tokens.Validate(ctx, credential)
	if err == nil {
		return id, auth.WithCredential(ctx, credential), nil
	}
	if errors.Is(err, auth.ErrAuthUnavailable) {
		return auth.Identity{}, ctx, &Error{Kind: KindUnavailable, Reason: "auth service unavailable", Err: err}
	}
	return auth.Identity{}, ctx, &Error{Kind: KindUnauthorized, Reason: auth.Code(err), Err: err}
}

func (s *Service) lock(productID int64) func() {
	if !s.Policy.StockGuard {
		return func() {}
	}
	return s.locks.lock(productID)
}

func (s *Service) ifVersion(p productclient.Product) int64 {
	if s.Policy.StockGuard {
		return p.Version
	}
	return 0
}

func (s *Service) loadOwned(ctx context.Context, orderID, userID int64) (Order, error) {
	o, err := s.Repo.GetForUser(ctx, orderID, userID)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, orderNotFound()
	}
	if err != nil {
		return Order{}, internal("load order", err)
	}
	return o, nil
}

// Authenticate validates credential and returns the caller together with a
// context that forwards the credential to the product service.
func (s *Service) Authenticate(ctx context.Context, credential string) (auth.Identity, context.Context, error) {
	return s.authenticate(ctx, credential)
}

func (s *Service) Create(ctx context.Context, credential string, in CreateInput) (Order, error) {
	id, ctx, err := s.authenticate(ctx, credential)
	if err != nil {
		return Order{}, err
	}
	return s.CreateAs(ctx, id, in)
}

// CreateAs places an order for an already authenticated caller. ctx must come
// from Authenticate.
func (s *Service) CreateAs(ctx context.Context, id auth.Identity, in CreateInput) (Order, error) {
	qty, err := in.validate()
	if err != nil {
		return Order{}, err
	}

	unlock := s.lock(in.ProductID)
	defer unlock()

	p, err := s.Products.Get(ctx, in.ProductID)
	if err != nil {
		return Order{}, storeError("fetch product", err)
	}
	if qty > p.Stock {
		return Order{}, insufficientStock(p.Stock)
	}
	total := lineTotal(p.Price, qty)

	_, err = s.Products.Update(ctx, p.ID, productclient.Update{
		Name: p.Name, Price: p.Price, Stock: p.Stock - qty, IfVersion: s.ifVersion(p),
	})
	if err != nil {
		return Order{}, storeError("decrement stock", err)
	}

	// remote stock is committed; the rest must run to completion
	ctx = context.WithoutCancel(ctx)
	o, err := s.Repo.Create(ctx, Order{ProductID: p.ID, Quantity: qty, TotalPrice: total, UserID: id.UserID})
	if err != nil {
		return Order{}, s.orphaned(ctx, "create", StockCompensationPayload{
			UserID: id.UserID, ProductID: p.ID, StockDelta: qty,
		}, err)
	}

	s.logger().Info("order_created",
		"order_id", o.ID, "user_id", o.UserID, "product_id", o.ProductID,
		"quantity", o.Quantity, "stock_left", p.Stock-qty, "request_id", middleware.GetReqID(ctx))
	s.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ProductID, o.ID, OrderPayload{
		OrderID: o.ID, UserID: o.UserID, ProductID: o.ProductID, Quantity: o.Quantity, TotalPrice: o.TotalPrice,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, credential string, orderID int64) (Order, error) {
	id, ctx, err := s.authenticate(ctx, credential)
	if err != nil {
		return Order{}, err
	}
	return s.loadOwned(ctx, orderID, id.UserID)
}

func (s *Service) List(ctx context.Context, credential string) ([]Order, error) {
	id, ctx, err := s.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	out, err := s.Repo.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, internal("list orders", err)
	}
	return out, nil
}

// Update changes an order's quantity, moving the difference in or out of the
// product's stock and repricing at the current unit price.
func (s *Service) Update(ctx context.Context, credential string, orderID int64, in UpdateInput) (Order, error) {
	id, ctx, err := s.authenticate(ctx, credential)
	if err != nil {
		return Order{}, err
	}
	qty, err := in.validate()
	if err != nil {
		return Order{}, err
	}

	o, err := s.loadOwned(ctx, orderID, id.UserID)
	if err != nil {
		return Order{}, err
	}
	unlock := s.lock(o.ProductID)
	defer unlock()
	if s.Policy.StockGuard {
		// another update of this order may have committed while we waited
		if o, err = s.loadOwned(ctx, orderID, id.UserID); err != nil {
			return Order{}, err
		}
	}

	p, err := s.Products.Get(ctx, o.ProductID)
	if err != nil {
		return Order{}, storeError("fetch product", err)
	}
	diff := qty - o.Quantity
	if diff > 0 && diff > p.Stock {
		return Order{}, insufficientStock(p.Stock)
	}
	total := lineTotal(p.Price, qty)

	if diff != 0 {
		_, err = s.Products.Update(ctx, p.ID, productclient.Update{
			Name: p.Name, Price: p.Price, Stock: p.Stock - diff, IfVersion: s.ifVersion(p),
		})
		if err != nil {
			return Order{}, storeError("adjust stock", err)
		}
	}

	ctx = context.WithoutCancel(ctx)
	updated, err := s.Repo.UpdateQuantity(ctx, o.ID, id.UserID, qty, total)
	if err != nil {
		if diff == 0 {
			if errors.Is(err, ErrOrderNotFound) {
				return Order{}, orderNotFound()
			}
			return Order{}, internal("update order", err)
		}
		return Order{}, s.orphaned(ctx, "update", StockCompensationPayload{
			OrderID: o.ID, UserID: id.UserID, ProductID: p.ID, StockDelta: diff,
		}, err)
	}

	s.publish(ctx, TopicOrderUpdated, EventOrderUpdated, updated.ProductID, updated.ID, OrderPayload{
		OrderID: updated.ID, UserID: updated.UserID, ProductID: updated.ProductID,
		Quantity: updated.Quantity, PreviousQuantity: o.Quantity, TotalPrice: updated.TotalPrice,
	})
	return updated, nil
}

// Delete removes an order. Stock only comes back when
// Policy.RestoreStockOnDelete is set.
func (s *Service) Delete(ctx context.Context, credential string, orderID int64) error {
	id, ctx, err := s.authenticate(ctx, credential)
	if err != nil {
		return err
	}
	o, err := s.loadOwned(ctx, orderID, id.UserID)
	if err != nil {
		return err
	}

	restored := false
	if s.Policy.RestoreStockOnDelete {
		unlock := s.lock(o.ProductID)
		defer unlock()
		if s.Policy.StockGuard {
			// a concurrent delete may already have given this stock back
			if o, err = s.loadOwned(ctx, orderID, id.UserID); err != nil {
				return err
			}
		}

		_, err := AdjustStock(ctx, s.Products, o.ProductID, o.Quantity, s.Policy.StockGuard, compensationAttempts)
		switch {
		case err == nil:
			restored = true
		case errors.Is(err, productclient.ErrNotFound):
			// product is gone, nothing to give back
			s.logger().Warn("stock_restore_skipped", "order_id", o.ID, "product_id", o.ProductID, "reason", "product not found")
		default:
			return storeError("restore stock", err)
		}
		ctx = context.WithoutCancel(ctx)
	}

	if err := s.Repo.Delete(ctx, o.ID, id.UserID); err != nil {
		if restored {
			return s.orphaned(ctx, "delete", StockCompensationPayload{
				OrderID: o.ID, UserID: id.UserID, ProductID: o.ProductID, StockDelta: -o.Quantity,
			}, err)
		}
		if errors.Is(err, ErrOrderNotFound) {
			return orderNotFound()
		}
		return internal("delete order", err)
	}

	s.publish(ctx, TopicOrderDeleted, EventOrderDeleted, o.ProductID, o.ID, OrderPayload{
		OrderID: o.ID, UserID: o.UserID, ProductID: o.ProductID, Quantity: o.Quantity,
		TotalPrice: o.TotalPrice, StockRestored: restored,
	})
	return nil
}

// orphaned handles a local write failure after remote stock moved by
// c.StockDelta. It compensates inline when allowed and otherwise hands the
// gap to the reconciler.
func (s *Service) orphaned(ctx context.Context, op string, c StockCompensationPayload, cause error) error {
	log := s.logger().With(
		"operation", op, "order_id", c.OrderID, "user_id", c.UserID,
		"product_id", c.ProductID, "stock_delta", c.StockDelta, "request_id", middleware.GetReqID(ctx))
	log.Error("stock_orphaned", "error", cause)

	if s.Policy.Compensate {
		_, err := AdjustStock(ctx, s.Products, c.ProductID, c.StockDelta, s.Policy.StockGuard, compensationAttempts)
		if err == nil {
			log.Info("stock_compensated")
			return internal(ErrOrderNotPersisted.Error(), errors.Join(ErrOrderNotPersisted, cause))
		}
		log.Error("stock_compensation_failed", "error", err)
	}

	c.Operation = op
	c.Reason = cause.Error()
	s.publish(ctx, TopicStockCompensation, EventStockCompensationRequested, c.ProductID, c.OrderID, c)
	return internal(ErrStockOrphaned.Error(), errors.Join(ErrStockOrphaned, cause))
}

func (s *Service) publish(ctx context.Context, topic, eventType string, productID, orderID int64, payload any) {
	if s.Events == nil {
		if topic == TopicStockCompensation {
			s.logger().Error("compensation_event_lost", "product_id", productID, "reason", "no publisher configured")
		}
		return
	}
	correlation := ""
	if orderID > 0 {
		correlation = strconv.FormatInt(orderID, 10)
	}
	env, err := NewEnvelope(eventType, s.Source, middleware.GetReqID(ctx), correlation, payload)
	if err == nil {
		err = s.Events.PublishEvent(topic, PartitionKey(productID), env)
	}
	if err != nil {
		s.logger().Error("event_publish_failed", "topic", topic, "event_type", eventType, "order_id", orderID, "error", err)
	}
}
