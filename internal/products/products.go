// Package products is the catalog owned by the product service.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("product not found")
	// ErrVersionMismatch: the If-Match version no longer matches the row.
	ErrVersionMismatch = errors.New("product version mismatch")
	ErrInvalid         = errors.New("invalid product")
)

type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	Version   int64     `json:"version"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the full replacement body for create and update.
type Input struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if decimal.NewFromFloat(in.Price).IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalid)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", ErrInvalid)
	}
	return nil
}

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		stock INTEGER NOT NULL CHECK (stock >= 0),
		version BIGINT NOT NULL DEFAULT 1,
		user_id BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

const columns = `id, name, price::float8, stock, version, user_id, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

func scan(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) Create(ctx context.Context, userID int64, in Input) (Product, error) {
	return scan(r.DB.QueryRow(ctx, `
		INSERT INTO products(name, price, stock, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns,
		in.Name, in.Price, in.Stock, userID))
}

func (r *Repo) Get(ctx context.Context, id int64) (Product, error) {
	return scan(r.DB.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id=$1`, id))
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+columns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update replaces name, price and stock. With ifVersion > 0 the write only
// lands if the row is still at that version.
func (r *Repo) Update(ctx context.Context, id int64, in Input, ifVersion int64) (Product, error) {
	p, err := scan(r.DB.QueryRow(ctx, `
		UPDATE products
		SET name=$2, price=$3, stock=$4, version=version+1, updated_at=NOW()
		WHERE id=$1 AND ($5 = 0 OR version=$5)
		RETURNING `+columns,
		id, in.Name, in.Price, in.Stock, ifVersion))
	if !errors.Is(err, ErrNotFound) || ifVersion == 0 {
		return p, err
	}
	// no row: either missing or stale version
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return Product{}, getErr
	}
	return Product{}, ErrVersionMismatch
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
