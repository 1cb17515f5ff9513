// Package productclient talks to the product service on behalf of the order
// service.
package productclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("product not found")
	ErrConflict = errors.New("product changed concurrently")
	// ErrUnavailable covers transport failures and 5xx answers.
	ErrUnavailable = errors.New("product service unavailable")
	// ErrUnauthorized is a 401 or 403 from the product service.
	ErrUnauthorized = errors.New("product service refused credentials")
	// ErrInvalid is a 400 or 422: the product service rejected the body.
	ErrInvalid  = errors.New("product service rejected input")
	ErrRejected = errors.New("product service rejected request")
)

type Product struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Stock   int     `json:"stock"`
	Version int64   `json:"version"`
}

// Update is the PUT body plus an optional version precondition.
type Update struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	IfVersion int64   `json:"-"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) Get(ctx context.Context, id int64) (Product, error) {
	return c.do(ctx, http.MethodGet, id, nil, 0)
}

func (c *Client) Update(ctx context.Context, id int64, u Update) (Product, error) {
	body, err := json.Marshal(u)
	if err != nil {
		return Product{}, err
	}
	return c.do(ctx, http.MethodPut, id, body, u.IfVersion)
}

func (c *Client) do(ctx context.Context, method string, id int64, body []byte, ifVersion int64) (Product, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	url := c.BaseURL + "/products/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return Product{}, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred := auth.CredentialFrom(ctx); cred != "" {
		req.Header.Set("Authorization", cred)
	}
	if ifVersion > 0 {
		req.Header.Set("If-Match", strconv.Quote(strconv.FormatInt(ifVersion, 10)))
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var p Product
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return Product{}, fmt.Errorf("%w: decode product: %v", ErrUnavailable, err)
		}
		return p, nil
	case resp.StatusCode == http.StatusNotFound:
		return Product{}, ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		return Product{}, ErrConflict
	case resp.StatusCode >= 500:
		return Product{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg = bytes.TrimSpace(msg)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Product{}, fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Product{}, fmt.Errorf("%w: status %d: %s", ErrInvalid, resp.StatusCode, msg)
	default:
		return Product{}, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}
}
