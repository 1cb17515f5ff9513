package httpx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/products"
)

type fakeOrderService struct {
	mu          sync.Mutex
	createCalls int

	AuthFn   func(credential string) (auth.Identity, error)
	CreateFn func(id auth.Identity, in orders.CreateInput) (orders.Order, error)
	GetFn    func(orderID int64) (orders.Order, error)
	ListFn   func() ([]orders.Order, error)
	UpdateFn func(orderID int64, in orders.UpdateInput) (orders.Order, error)
	DeleteFn func(orderID int64) error
}

func (f *fakeOrderService) Authenticate(ctx context.Context, credential string) (auth.Identity, context.Context, error) {
	id, err := f.AuthFn(credential)
	return id, ctx, err
}

func (f *fakeOrderService) CreateAs(_ context.Context, id auth.Identity, in orders.CreateInput) (orders.Order, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	return f.CreateFn(id, in)
}

func (f *fakeOrderService) Get(_ context.Context, _ string, orderID int64) (orders.Order, error) {
	return f.GetFn(orderID)
}

func (f *fakeOrderService) List(context.Context, string) ([]orders.Order, error) { return f.ListFn() }

func (f *fakeOrderService) Update(_ context.Context, _ string, orderID int64, in orders.UpdateInput) (orders.Order, error) {
	return f.UpdateFn(orderID, in)
}

func (f *fakeOrderService) Delete(_ context.Context, _ string, orderID int64) error {
	return f.DeleteFn(orderID)
}

type memIdem struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (s *memIdem) key(userID int64, key string) string {
	return fmt.Sprintf("%d:%s", userID, key)
}

func (s *memIdem) Lookup(_ context.Context, userID int64, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[s.key(userID, key)]
	return b, ok, nil
}

func (s *memIdem) Remember(_ context.Context, userID int64, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string][]byte{}
	}
	s.m[s.key(userID, key)] = body
	return nil
}

// memProducts mimics products.Repo including the version precondition.
type memProducts struct {
	mu     sync.Mutex
	rows   map[int64]products.Product
	nextID int64
}

func newMemProducts() *memProducts { return &memProducts{rows: map[int64]products.Product{}} }

func (m *memProducts) Create(_ context.Context, userID int64, in products.Input) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	p := products.Product{ID: m.nextID, Name: in.Name, Price: in.Price, Stock: in.Stock, Version: 1, UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.rows[p.ID] = p
	return p, nil
}

func (m *memProducts) Get(_ context.Context, id int64) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) List(context.Context) ([]products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []products.Product{}
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) Update(_ context.Context, id int64, in products.Input, ifVersion int64) (products.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	if ifVersion > 0 && ifVersion != p.Version {
		return products.Product{}, products.ErrVersionMismatch
	}
	p.Name, p.Price, p.Stock = in.Name, in.Price, in.Stock
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	m.rows[id] = p
	return p, nil
}

func (m *memProducts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return products.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]string
	ids   map[string]int64
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]string{}, ids: map[string]int64{}}
}

func (m *memUsers) Register(_ context.Context, email, password string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if _, ok := m.users[email]; ok {
		return auth.User{}, auth.ErrEmailTaken
	}
	m.users[email] = password
	m.ids[email] = int64(len(m.ids) + 1)
	return auth.User{ID: m.ids[email], Email: email, CreatedAt: time.Now()}, nil
}

func (m *memUsers) Authenticate(_ context.Context, email, password string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	if pw, ok := m.users[email]; !ok || pw != password {
		return auth.User{}, auth.ErrBadCredentials
	}
	return auth.User{ID: m.ids[email], Email: email}, nil
}

type staticTokens map[string]auth.Identity

func (s staticTokens) Validate(_ context.Context, credential string) (auth.Identity, error) {
	if credential == "down" {
		return auth.Identity{}, auth.ErrAuthUnavailable
	}
	id, ok := s[credential]
	if !ok {
		return auth.Identity{}, auth.ErrInvalid
	}
	return id, nil
}
