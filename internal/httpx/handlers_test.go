package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/products"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path, credential, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ordersRouter(svc *fakeOrderService, idem IdempotencyStore) http.Handler {
	r := NewRouter()
	(&OrdersHandler{Service: svc, Idem: idem}).Register(r)
	return r
}

func okAuth(credential string) (auth.Identity, error) {
	switch credential {
	case "Bearer good":
		return auth.Identity{UserID: 7}, nil
	case "down":
		return auth.Identity{}, &orders.Error{Kind: orders.KindUnavailable, Reason: "auth service unavailable"}
	}
	return auth.Identity{}, &orders.Error{Kind: orders.KindUnauthorized, Reason: auth.CodeInvalid}
}

func TestCreateOrderStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		credential string
		err        error
		wantCode   int
		wantKind   string
	}{
		{"created", "Bearer good", nil, http.StatusCreated, ""},
		{"unauthorized", "Bearer bad", nil, http.StatusUnauthorized, "unauthorized"},
		{"auth down", "down", nil, http.StatusServiceUnavailable, "service_unavailable"},
		{"not found", "Bearer good", &orders.Error{Kind: orders.KindNotFound, Reason: "product not found"}, http.StatusNotFound, "not_found"},
		{"validation", "Bearer good", &orders.Error{Kind: orders.KindValidation, Reason: "quantity is required"}, http.StatusBadRequest, "validation_error"},
		{"conflict", "Bearer good", &orders.Error{Kind: orders.KindConflict, Reason: "retry"}, http.StatusConflict, "conflict"},
		{"product service down", "Bearer good", &orders.Error{Kind: orders.KindUnavailable, Reason: "product service unavailable"}, http.StatusServiceUnavailable, "service_unavailable"},
		{"orphaned", "Bearer good", &orders.Error{Kind: orders.KindInternal, Reason: orders.ErrStockOrphaned.Error(), Err: orders.ErrStockOrphaned}, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeOrderService{
				AuthFn: okAuth,
				CreateFn: func(id auth.Identity, in orders.CreateInput) (orders.Order, error) {
					if tc.err != nil {
						return orders.Order{}, tc.err
					}
					return orders.Order{ID: 1, ProductID: in.ProductID, Quantity: *in.Quantity, TotalPrice: 30, UserID: id.UserID}, nil
				},
			}
			rec := do(t, ordersRouter(svc, nil), http.MethodPost, "/orders", tc.credential, `{"product_id":1,"quantity":3}`)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantKind != "" {
				body := decodeBody[errorBody](t, rec)
				assert.Equal(t, tc.wantKind, body.Error)
				assert.Nil(t, body.Available)
				var oe *orders.Error
				if errors.As(tc.err, &oe) {
					assert.Equal(t, oe.Reason, body.Details)
				}
			}
		})
	}
}

func TestCreateOrderBodyHidesOwner(t *testing.T) {
	svc := &fakeOrderService{
		AuthFn: okAuth,
		CreateFn: func(id auth.Identity, in orders.CreateInput) (orders.Order, error) {
			return orders.Order{ID: 1, ProductID: 1, Quantity: 3, TotalPrice: 30, UserID: id.UserID}, nil
		},
	}
	rec := do(t, ordersRouter(svc, nil), http.MethodPost, "/orders", "Bearer good", `{"product_id":1,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.NotContains(t, body, "user_id")
	assert.Equal(t, 30.0, body["total_price"])
}

func TestInsufficientStockCarriesAvailable(t *testing.T) {
	svc := &fakeOrderService{
		AuthFn: okAuth,
		CreateFn: func(auth.Identity, orders.CreateInput) (orders.Order, error) {
			return orders.Order{}, &orders.Error{Kind: orders.KindInsufficientStock, Reason: "insufficient stock, available: 0", Available: 0}
		},
	}
	rec := do(t, ordersRouter(svc, nil), http.MethodPost, "/orders", "Bearer good", `{"product_id":1,"quantity":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "insufficient_stock", body.Error)
	require.NotNil(t, body.Available)
	assert.Equal(t, 0, *body.Available)
}

func TestCreateOrderRejectsBadJSON(t *testing.T) {
	svc := &fakeOrderService{AuthFn: okAuth}
	rec := do(t, ordersRouter(svc, nil), http.MethodPost, "/orders", "Bearer good", `{"product_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.createCalls)
}

func TestCreateOrderIdempotencyKeyReplays(t *testing.T) {
	svc := &fakeOrderService{
		AuthFn: okAuth,
		CreateFn: func(id auth.Identity, in orders.CreateInput) (orders.Order, error) {
			return orders.Order{ID: 11, ProductID: in.ProductID, Quantity: *in.Quantity, TotalPrice: 20}, nil
		},
	}
	h := ordersRouter(svc, &memIdem{})

	first := do(t, h, http.MethodPost, "/orders", "Bearer good", `{"product_id":1,"quantity":2}`, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	again := do(t, h, http.MethodPost, "/orders", "Bearer good", `{"product_id":1,"quantity":2}`, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), again.Body.String())
	assert.Equal(t, 1, svc.createCalls)

	other := do(t, h, http.MethodPost, "/orders", "Bearer good", `{"product_id":1,"quantity":2}`, "Idempotency-Key", "k2")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Equal(t, 2, svc.createCalls)
}

func TestOrderRoutes(t *testing.T) {
	o := orders.Order{ID: 4, ProductID: 1, Quantity: 2, TotalPrice: 20}
	svc := &fakeOrderService{
		AuthFn: okAuth,
		GetFn: func(id int64) (orders.Order, error) {
			if id != 4 {
				return orders.Order{}, &orders.Error{Kind: orders.KindNotFound, Reason: "order not found"}
			}
			return o, nil
		},
		ListFn: func() ([]orders.Order, error) { return []orders.Order{o}, nil },
		UpdateFn: func(id int64, in orders.UpdateInput) (orders.Order, error) {
			u := o
			u.Quantity = *in.Quantity
			return u, nil
		},
		DeleteFn: func(int64) error { return nil },
	}
	h := ordersRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/orders/4", "Bearer good", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), decodeBody[orders.Order](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/orders/5", "Bearer good", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/orders/abc", "Bearer good", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/orders", "Bearer good", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]orders.Order](t, rec), 1)

	rec = do(t, h, http.MethodPut, "/orders/4", "Bearer good", `{"quantity":5}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeBody[orders.Order](t, rec).Quantity)

	rec = do(t, h, http.MethodDelete, "/orders/4", "Bearer good", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func productsRouter(repo productRepo) http.Handler {
	r := NewRouter()
	tokens := staticTokens{"Bearer good": {UserID: 3}}
	(&ProductsHandler{Repo: repo, Tokens: tokens}).Register(r)
	return r
}

func TestProductsRequireToken(t *testing.T) {
	h := productsRouter(newMemProducts())

	rec := do(t, h, http.MethodGet, "/products", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/products", "Bearer nope", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.CodeInvalid, decodeBody[errorBody](t, rec).Details)

	rec = do(t, h, http.MethodGet, "/products", "down", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProductLifecycleWithVersions(t *testing.T) {
	repo := newMemProducts()
	h := productsRouter(repo)

	rec := do(t, h, http.MethodPost, "/products", "Bearer good", `{"name":"widget","price":10,"stock":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[products.Product](t, rec)
	assert.Equal(t, int64(3), p.UserID)

	rec = do(t, h, http.MethodGet, "/products/1", "Bearer good", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))

	rec = do(t, h, http.MethodPut, "/products/1", "Bearer good", `{"name":"widget","price":10,"stock":2}`, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	rec = do(t, h, http.MethodPut, "/products/1", "Bearer good", `{"name":"widget","price":10,"stock":0}`, "If-Match", `"1"`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPut, "/products/1", "Bearer good", `{"name":"widget","price":10,"stock":0}`, "If-Match", `"x"`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(t, h, http.MethodPut, "/products/1", "Bearer good", `{"name":"","price":10,"stock":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/products/1", "Bearer good", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/products/1", "Bearer good", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseIfMatch(t *testing.T) {
	cases := map[string]int64{``: 0, `*`: 0, `"4"`: 4, `W/"4"`: 4, `9`: 9}
	for in, want := range cases {
		got, err := parseIfMatch(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{`"abc"`, `"0"`, `"-1"`} {
		_, err := parseIfMatch(bad)
		assert.Error(t, err, bad)
	}
}

func authRouter(t *testing.T, ttl time.Duration) http.Handler {
	t.Helper()
	iss, err := auth.NewIssuer("s3cret", "HS256", ttl)
	require.NoError(t, err)
	v, err := auth.NewJWTValidator("s3cret", "HS256")
	require.NoError(t, err)
	r := NewRouter()
	(&AuthHandler{Users: newMemUsers(), Issuer: iss, Tokens: v}).Register(r)
	return r
}

func TestRegisterLoginValidate(t *testing.T) {
	h := authRouter(t, 30*time.Minute)

	rec := do(t, h, http.MethodPost, "/register", "", `{"email":"Ana@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/register", "", `{"email":"ana@example.com","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/register", "", `{"email":"nope","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/login", "", `{"email":"ana@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decodeBody[tokenResp](t, rec)
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	rec = do(t, h, http.MethodPost, "/validate-token", "Bearer "+tok.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[auth.ValidateResponse](t, rec)
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, "ana@example.com", got.Sub)
	assert.Equal(t, tok.ExpiresAt, got.Exp)
}

func TestValidateTokenErrorCodes(t *testing.T) {
	h := authRouter(t, time.Minute)
	cases := map[string]string{
		"":           auth.CodeMissingHeader,
		"Token abc":  auth.CodeMalformed,
		"Bearer abc": auth.CodeMalformed,
	}
	for credential, code := range cases {
		rec := do(t, h, http.MethodPost, "/validate-token", credential, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, credential)
		assert.Equal(t, code, decodeBody[map[string]string](t, rec)["error"], credential)
	}
}
