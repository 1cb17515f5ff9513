package httpx

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/products"
	"github.com/go-chi/chi/v5"
)

type productRepo interface {
	Create(ctx context.Context, userID int64, in products.Input) (products.Product, error)
	Get(ctx context.Context, id int64) (products.Product, error)
	List(ctx context.Context) ([]products.Product, error)
	Update(ctx context.Context, id int64, in products.Input, ifVersion int64) (products.Product, error)
	Delete(ctx context.Context, id int64) error
}

type identityKey struct{}

func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey{}).(auth.Identity)
	return id
}

// RequireToken rejects requests whose bearer token v does not accept.
func RequireToken(v auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Validate(r.Context(), r.Header.Get("Authorization"))
			if errors.Is(err, auth.ErrAuthUnavailable) {
				log.Printf("token validation: %v", err)
				writeMessage(w, http.StatusServiceUnavailable, "service_unavailable", "auth service unavailable")
				return
			}
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "unauthorized", auth.Code(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

type ProductsHandler struct {
	Repo   productRepo
	Tokens auth.Validator
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Use(RequireToken(h.Tokens))
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
}

func etag(version int64) string { return `"` + strconv.FormatInt(version, 10) + `"` }

// parseIfMatch accepts `"3"`, `W/"3"` and `3`. Empty or `*` means no precondition.
func parseIfMatch(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("bad If-Match")
	}
	return n, nil
}

func writeProductError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, products.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, products.ErrVersionMismatch):
		writeMessage(w, http.StatusConflict, "conflict", "product version mismatch")
	case errors.Is(err, products.ErrInvalid):
		writeMessage(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Printf("products: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in products.Input
	if err := decode(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "validation_error", "invalid json")
		return
	}
	if err := in.Validate(); err != nil {
		writeProductError(w, err)
		return
	}
	p, err := h.Repo.Create(r.Context(), identityFrom(r.Context()).UserID, in)
	if err != nil {
		writeProductError(w, err)
		return
	}
	w.Header().Set("ETag", etag(p.Version))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.List(r.Context())
	if err != nil {
		writeProductError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProductError(w, products.ErrNotFound)
		return
	}
	p, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeProductError(w, err)
		return
	}
	w.Header().Set("ETag", etag(p.Version))
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProductError(w, products.ErrNotFound)
		return
	}
	ifVersion, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeMessage(w, http.StatusPreconditionFailed, "conflict", err.Error())
		return
	}
	var in products.Input
	if err := decode(w, r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, "validation_error", "invalid json")
		return
	}
	if err := in.Validate(); err != nil {
		writeProductError(w, err)
		return
	}
	p, err := h.Repo.Update(r.Context(), id, in, ifVersion)
	if err != nil {
		writeProductError(w, err)
		return
	}
	w.Header().Set("ETag", etag(p.Version))
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeProductError(w, products.ErrNotFound)
		return
	}
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		writeProductError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
