package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ValidateResponse is the /validate-token success payload.
type ValidateResponse struct {
	UserID int64  `json:"user_id"`
	Sub    string `json:"sub"`
	Exp    int64  `json:"exp"`
}

type validateError struct {
	Error string `json:"error"`
}

// RemoteValidator delegates verification to the auth service.
type RemoteValidator struct {
	URL  string // full /validate-token URL
	HTTP *http.Client
}

func NewRemoteValidator(baseURL string, timeout time.Duration) *RemoteValidator {
	return &RemoteValidator{
		URL:  baseURL + "/validate-token",
		HTTP: &http.Client{Timeout: timeout},
	}
}

func (v *RemoteValidator) Validate(ctx context.Context, credential string) (Identity, error) {
	// reject locally what the auth service would reject anyway
	if _, err := BearerToken(credential); err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", credential)

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body ValidateResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Identity{}, fmt.Errorf("%w: decode validate response: %v", ErrAuthUnavailable, err)
		}
		if body.UserID <= 0 {
			return Identity{}, ErrInvalid
		}
		return Identity{UserID: body.UserID, Email: body.Sub, ExpiresAt: time.Unix(body.Exp, 0).UTC()}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		var body validateError
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return Identity{}, errFromCode(body.Error)
	case resp.StatusCode >= 500:
		return Identity{}, fmt.Errorf("%w: status %d", ErrAuthUnavailable, resp.StatusCode)
	default:
		return Identity{}, ErrInvalid
	}
}

// NewValidator picks the token validator for mode: "remote" asks the auth
// service, "local" verifies with the shared secret.
func NewValidator(mode, authURL, secret, alg string, timeout time.Duration) (Validator, error) {
	switch mode {
	case "", "remote":
		return NewRemoteValidator(authURL, timeout), nil
	case "local":
		return NewJWTValidator(secret, alg)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
