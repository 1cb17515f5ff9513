package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload. sub carries the email like the gateway always did;
// user_id is what the order service stamps on orders.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func signingMethod(alg string) (jwt.SigningMethod, error) {
	m := jwt.GetSigningMethod(alg)
	if m == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", alg)
	}
	if _, ok := m.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not a shared-secret algorithm", alg)
	}
	return m, nil
}

func NewIssuer(secret, alg string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	m, err := signingMethod(alg)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), method: m, ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(userID int64, email string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// JWTValidator verifies tokens locally against the shared secret.
type JWTValidator struct {
	secret []byte
	alg    string
	now    func() time.Time
}

func NewJWTValidator(secret, alg string) (*JWTValidator, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if _, err := signingMethod(alg); err != nil {
		return nil, err
	}
	return &JWTValidator{secret: []byte(secret), alg: alg, now: time.Now}, nil
}

func (v *JWTValidator) Validate(_ context.Context, credential string) (Identity, error) {
	raw, err := BearerToken(credential)
	if err != nil {
		return Identity{}, err
	}
	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Identity{}, ErrMalformed
	default:
		return Identity{}, ErrInvalid
	}
	if claims.UserID <= 0 {
		return Identity{}, ErrInvalid
	}
	return Identity{
		UserID:    claims.UserID,
		Email:     claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
