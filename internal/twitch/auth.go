package twitch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/ttvsnap/ttvsnap/internal/errors"
)

// validationLogin is a long-standing account used as the "who am I" probe.
const validationLogin = "jtv"

// AuthClient performs the client-credentials exchange and token validation.
type AuthClient struct {
	cfg Config
}

// NewAuthClient creates an AuthClient.
func NewAuthClient(cfg Config) *AuthClient {
	return &AuthClient{cfg: cfg.withDefaults()}
}

// Exchange trades the client id and secret for an app access token.
// Any failure is reported as *errors.ErrTokenExchange carrying the raw
// response body when there was one. It never retries.
func (a *AuthClient) Exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", strings.TrimSpace(a.cfg.ClientID))
	form.Set("client_secret", strings.TrimSpace(a.cfg.ClientSecret))
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AuthBaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &errors.ErrTokenExchange{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := do(a.cfg.HTTPClient, req)
	if err != nil {
		return "", &errors.ErrTokenExchange{Err: err}
	}

	if !gjson.ValidBytes(resp.Body) {
		return "", &errors.ErrTokenExchange{
			Status: resp.Status,
			Body:   truncate(resp.Body),
			Err:    fmt.Errorf("malformed response"),
		}
	}

	token := gjson.GetBytes(resp.Body, "access_token").String()
	if token == "" {
		return "", &errors.ErrTokenExchange{Status: resp.Status, Body: truncate(resp.Body)}
	}

	return token, nil
}

// Validate reports whether the platform recognizes the client with token.
// A well-formed rejection yields false; transport and decode problems are errors.
func (a *AuthClient) Validate(ctx context.Context, token string) (bool, error) {
	query := url.Values{}
	query.Set("login", validationLogin)

	resp, err := getHelix(ctx, a.cfg, "/helix/users", query, token)
	if err != nil {
		return false, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return false, fmt.Errorf("helix /helix/users: malformed response (status %d): %s", resp.Status, truncate(resp.Body))
	}

	data := gjson.GetBytes(resp.Body, "data")
	return data.IsArray() && len(data.Array()) > 0, nil
}
