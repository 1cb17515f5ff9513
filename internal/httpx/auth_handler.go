package httpx

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/go-chi/chi/v5"
)

type userStore interface {
	Register(ctx context.Context, email, password string) (auth.User, error)
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
}

type tokenIssuer interface {
	Issue(userID int64, email string) (string, time.Time, error)
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type AuthHandler struct {
	Users  userStore
	Issuer tokenIssuer
	Tokens auth.Validator // local verifier behind /validate-token
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/validate-token", h.validateToken)
}

func (req credentialsReq) valid() bool {
	return strings.Contains(req.Email, "@") && req.Password != ""
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decode(w, r, &req); err != nil || !req.valid() {
		writeMessage(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}
	u, err := h.Users.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeMessage(w, http.StatusBadRequest, "validation_error", "email already registered")
		return
	}
	if err != nil {
		log.Printf("register: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "email": u.Email, "message": "user registered"})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := decode(w, r, &req); err != nil || !req.valid() {
		writeMessage(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		writeMessage(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if err != nil {
		log.Printf("login: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	tok, exp, err := h.Issuer.Issue(u.ID, u.Email)
	if err != nil {
		log.Printf("issue token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp.Unix()})
}

func (h *AuthHandler) validateToken(w http.ResponseWriter, r *http.Request) {
	id, err := h.Tokens.Validate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.Code(err)})
		return
	}
	writeJSON(w, http.StatusOK, auth.ValidateResponse{UserID: id.UserID, Sub: id.Email, Exp: id.ExpiresAt.Unix()})
}
