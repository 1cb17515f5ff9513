package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		log.Printf("HTTP listening at %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Available *int   `json:"available,omitempty"`
}

var kindStatus = map[orders.Kind]int{
	orders.KindUnauthorized:      http.StatusUnauthorized,
	orders.KindNotFound:          http.StatusNotFound,
	orders.KindValidation:        http.StatusBadRequest,
	orders.KindInsufficientStock: http.StatusBadRequest,
	orders.KindConflict:          http.StatusConflict,
	orders.KindUnavailable:       http.StatusServiceUnavailable,
	orders.KindInternal:          http.StatusInternalServerError,
}

// writeError renders an orders error; anything unclassified is a 500.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: string(orders.KindInternal), Details: "internal error"}
	var e *orders.Error
	if errors.As(err, &e) {
		body.Error = string(e.Kind)
		body.Details = e.Reason
		if e.Kind == orders.KindInsufficientStock {
			n := e.Available
			body.Available = &n
		}
	}
	code, ok := kindStatus[orders.Kind(body.Error)]
	if !ok {
		code = http.StatusInternalServerError
	}
	if code == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, code, body)
}

func writeMessage(w http.ResponseWriter, code int, kind, details string) {
	writeJSON(w, code, errorBody{Error: kind, Details: details})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
