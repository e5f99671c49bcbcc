// Package twitch talks to the Helix API and the id.twitch.tv OAuth endpoint.
package twitch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ttvsnap/ttvsnap/internal/transport"
)

const (
	DefaultAPIBaseURL  = "https://api.twitch.tv"
	DefaultAuthBaseURL = "https://id.twitch.tv"

	// maxBodyBytes caps how much of an API response is buffered.
	maxBodyBytes = 1 << 20
)

// Config holds the connection settings shared by AuthClient and StreamPoller.
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	AuthBaseURL  string
	HTTPClient   *http.Client
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = DefaultAuthBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	c.AuthBaseURL = strings.TrimRight(c.AuthBaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = transport.NewClient(transport.Options{})
	}
	return c
}

type rawResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// getHelix performs an authenticated GET against the Helix API.
// token may be empty, in which case no Authorization header is sent.
func getHelix(ctx context.Context, cfg Config, path string, query url.Values, token string) (*rawResponse, error) {
	endpoint := cfg.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("helix %s: create request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.ClientID != "" {
		req.Header.Set("Client-ID", cfg.ClientID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return do(cfg.HTTPClient, req)
}

func do(client *http.Client, req *http.Request) (*rawResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}

	return &rawResponse{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// truncate keeps log lines readable when a proxy returns an HTML page.
func truncate(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
