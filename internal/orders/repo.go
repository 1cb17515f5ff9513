package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// Repository is the order service's local persistence. Every read and write is
// scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	GetForUser(ctx context.Context, id, userID int64) (Order, error)
	ListForUser(ctx context.Context, userID int64) ([]Order, error)
	UpdateQuantity(ctx context.Context, id, userID int64, quantity int, total float64) (Order, error)
	Delete(ctx context.Context, id, userID int64) error
}

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		total_price NUMERIC(14,2) NOT NULL CHECK (total_price >= 0),
		user_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
}

const orderColumns = `id, product_id, quantity, total_price::float8, user_id, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

var _ Repository = (*Repo)(nil)

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ProductID, &o.Quantity, &o.TotalPrice, &o.UserID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (r *Repo) Create(ctx context.Context, o Order) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		INSERT INTO orders(product_id, quantity, total_price, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		o.ProductID, o.Quantity, o.TotalPrice, o.UserID))
}

func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 AND user_id=$2`, id, userID))
}

func (r *Repo) ListForUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateQuantity(ctx context.Context, id, userID int64, quantity int, total float64) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET quantity=$3, total_price=$4, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING `+orderColumns,
		id, userID, quantity, total))
}

func (r *Repo) Delete(ctx context.Context, id, userID int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}
