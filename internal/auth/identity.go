// Package auth issues and verifies bearer tokens and owns the user accounts
// they are issued for.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Identity is the caller derived from a validated token. It is never persisted.
type Identity struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Validator verifies a raw Authorization header value.
type Validator interface {
	Validate(ctx context.Context, credential string) (Identity, error)
}

var (
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingHeader = fmt.Errorf("%w: authorization header is missing", ErrUnauthorized)
	ErrMalformed     = fmt.Errorf("%w: malformed token", ErrUnauthorized)
	ErrExpired       = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrInvalid       = fmt.Errorf("%w: invalid token", ErrUnauthorized)

	// ErrAuthUnavailable is a transport failure talking to the auth service.
	// It is not an authentication verdict.
	ErrAuthUnavailable = errors.New("auth service unavailable")
)

// wire codes used by /validate-token
const (
	CodeMissingHeader = "missing_authorization"
	CodeMalformed     = "malformed_token"
	CodeExpired       = "token_expired"
	CodeInvalid       = "invalid_token"
)

func Code(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeader):
		return CodeMissingHeader
	case errors.Is(err, ErrMalformed):
		return CodeMalformed
	case errors.Is(err, ErrExpired):
		return CodeExpired
	default:
		return CodeInvalid
	}
}

func errFromCode(code string) error {
	switch code {
	case CodeMissingHeader:
		return ErrMissingHeader
	case CodeMalformed:
		return ErrMalformed
	case CodeExpired:
		return ErrExpired
	default:
		return ErrInvalid
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformed
	}
	return token, nil
}

type credentialKey struct{}

// WithCredential stores the caller's Authorization header so outbound calls
// can forward it.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

func CredentialFrom(ctx context.Context) string {
	v, _ := ctx.Value(credentialKey{}).(string)
	return v
}
