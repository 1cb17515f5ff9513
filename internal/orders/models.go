package orders

import "time"

type Order struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	UserID     int64     `json:"-"` // owner, never client supplied
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func (in CreateInput) validate() (int, error) {
	if in.ProductID <= 0 {
		return 0, validationError("product_id is required")
	}
	return validQuantity(in.Quantity)
}

type UpdateInput struct {
	Quantity *int `json:"quantity"`
}

func (in UpdateInput) validate() (int, error) { return validQuantity(in.Quantity) }

func validQuantity(q *int) (int, error) {
	if q == nil {
		return 0, validationError("quantity is required")
	}
	if *q <= 0 {
		return 0, validationError("quantity must be a positive integer")
	}
	return *q, nil
}
