package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-shop-orders/internal/productclient"
	"github.com/shopspring/decimal"
)

// ProductStore is the product service as the orchestrator sees it.
type ProductStore interface {
	Get(ctx context.Context, id int64) (productclient.Product, error)
	Update(ctx context.Context, id int64, u productclient.Update) (productclient.Product, error)
}

var ErrNegativeStock = errors.New("adjustment would make stock negative")

// AdjustStock adds delta to a product's stock. When conditional is set the
// write carries the version it read and is retried on conflict, up to
// attempts times.
func AdjustStock(ctx context.Context, ps ProductStore, productID int64, delta int, conditional bool, attempts int) (productclient.Product, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		p, err := ps.Get(ctx, productID)
		if err != nil {
			return productclient.Product{}, err
		}
		if p.Stock+delta < 0 {
			return productclient.Product{}, fmt.Errorf("%w: stock %d, delta %d", ErrNegativeStock, p.Stock, delta)
		}
		u := productclient.Update{Name: p.Name, Price: p.Price, Stock: p.Stock + delta}
		if conditional {
			u.IfVersion = p.Version
		}
		updated, err := ps.Update(ctx, productID, u)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, productclient.ErrConflict) {
			return productclient.Product{}, err
		}
		lastErr = err
	}
	return productclient.Product{}, lastErr
}

// lineTotal is unit price × quantity rounded to cents.
func lineTotal(price float64, qty int) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Round(2).InexactFloat64()
}

// productLocks serializes the read-modify-write window per product id
// within this process.
type productLocks struct{ m sync.Map } // int64 -> *sync.Mutex

func (l *productLocks) lock(productID int64) func() {
	v, _ := l.m.LoadOrStore(productID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func storeError(step string, err error) error {
	switch {
	case errors.Is(err, productclient.ErrNotFound):
		return &Error{Kind: KindNotFound, Reason: "product not found", Err: err}
	case errors.Is(err, productclient.ErrConflict):
		return &Error{Kind: KindConflict, Reason: "product stock changed concurrently, retry the request", Err: err}
	case errors.Is(err, productclient.ErrUnavailable):
		return &Error{Kind: KindUnavailable, Reason: "product service unavailable", Err: err}
	case errors.Is(err, productclient.ErrUnauthorized):
		return &Error{Kind: KindUnauthorized, Reason: "product service refused credentials", Err: err}
	case errors.Is(err, productclient.ErrInvalid):
		return &Error{Kind: KindValidation, Reason: "product service rejected the request", Err: err}
	default:
		return internal(step, err)
	}
}
