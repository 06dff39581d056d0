package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/resqtap/resqtap/internal/loggy"
	"github.com/resqtap/resqtap/internal/profile"
	"github.com/resqtap/resqtap/internal/training"
)

// TokenSource supplies the bearer token for API calls. Implemented by
// the auth service.
type TokenSource interface {
	Token(ctx context.Context) string
}

// APIError is a non-2xx response from the remote API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// IsClientError reports whether the status indicates a request the
// server will never accept, so retrying is pointless.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ClientConfig holds the remote API client settings
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	BurstLimit        int
}

// Client talks to the remote sync API. All calls pass through a rate
// limiter so a busy drain cannot hammer the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *loggy.Logger
}

// NewClient creates a new API client
func NewClient(cfg ClientConfig, tokens TokenSource, logger *loggy.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 10
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		logger:     logger,
	}
}

// GetProfile fetches the remote profile. A 404 means no profile has been
// uploaded yet and is not an error.
func (c *Client) GetProfile(ctx context.Context) (*profile.Profile, error) {
	var p profile.Profile
	err := c.doJSON(ctx, http.MethodGet, "/profile", nil, &p)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// PutProfile uploads the full profile snapshot
func (c *Client) PutProfile(ctx context.Context, p profile.Profile) error {
	return c.doJSON(ctx, http.MethodPut, "/profile", p, nil)
}

type favoritesEnvelope struct {
	Favorites []string `json:"favorites"`
}

// GetFavorites fetches the remote favorites set
func (c *Client) GetFavorites(ctx context.Context) ([]string, error) {
	var env favoritesEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/favorites", nil, &env); err != nil {
		return nil, err
	}
	return env.Favorites, nil
}

// PutFavorites uploads the full favorites set
func (c *Client) PutFavorites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.doJSON(ctx, http.MethodPut, "/favorites", favoritesEnvelope{Favorites: ids}, nil)
}

type sessionsEnvelope struct {
	Sessions []training.Session `json:"sessions"`
}

// ListTrainingSessions fetches the remote training history
func (c *Client) ListTrainingSessions(ctx context.Context) ([]training.Session, error) {
	var env sessionsEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/training/sessions", nil, &env); err != nil {
		return nil, err
	}
	return env.Sessions, nil
}

// PushTrainingSessions uploads completed sessions
func (c *Client) PushTrainingSessions(ctx context.Context, sessions []training.Session) error {
	return c.doJSON(ctx, http.MethodPost, "/training/sessions", sessions, nil)
}

// doJSON performs one API call: rate limit, encode, send, decode. A
// non-2xx status becomes an APIError; a 204 is success with no body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("API request failed", "method", method, "path", path, "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
