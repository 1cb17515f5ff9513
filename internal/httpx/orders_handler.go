package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
)

type orderService interface {
	Authenticate(ctx context.Context, credential string) (auth.Identity, context.Context, error)
	CreateAs(ctx context.Context, id auth.Identity, in orders.CreateInput) (orders.Order, error)
	Get(ctx context.Context, credential string, orderID int64) (orders.Order, error)
	List(ctx context.Context, credential string) ([]orders.Order, error)
	Update(ctx context.Context, credential string, orderID int64, in orders.UpdateInput) (orders.Order, error)
	Delete(ctx context.Context, credential string, orderID int64) error
}

// IdempotencyStore remembers create responses per user and key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID int64, key string) ([]byte, bool, error)
	Remember(ctx context.Context, userID int64, key string, body []byte) error
}

type createOrderReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type updateOrderReq struct {
	Quantity *int `json:"quantity"`
}

type OrdersHandler struct {
	Service orderService
	Idem    IdempotencyStore // optional
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ctx, err := h.Service.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req createOrderReq
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, string(orders.KindValidation), "invalid json")
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" && h.Idem != nil {
		b, ok, err := h.Idem.Lookup(ctx, id.UserID, idemKey)
		if err != nil {
			log.Printf("idempotency lookup: %v", err)
		} else if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	o, err := h.Service.CreateAs(ctx, id, orders.CreateInput{ProductID: req.ProductID, Quantity: req.Quantity})
	if err != nil {
		writeError(w, err)
		return
	}

	if idemKey != "" && h.Idem != nil {
		if b, err := json.Marshal(o); err == nil {
			if err := h.Idem.Remember(context.WithoutCancel(ctx), id.UserID, idemKey, b); err != nil {
				log.Printf("idempotency remember: %v", err)
			}
		}
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.List(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, string(orders.KindNotFound), "order not found")
		return
	}
	o, err := h.Service.Get(r.Context(), r.Header.Get("Authorization"), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, string(orders.KindNotFound), "order not found")
		return
	}
	var req updateOrderReq
	if err := decode(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, string(orders.KindValidation), "invalid json")
		return
	}
	o, err := h.Service.Update(r.Context(), r.Header.Get("Authorization"), orderID, orders.UpdateInput{Quantity: req.Quantity})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, string(orders.KindNotFound), "order not found")
		return
	}
	if err := h.Service.Delete(r.Context(), r.Header.Get("Authorization"), orderID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
