package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

// StatusError is a non-2xx provider response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

// Unwrap classifies every unexpected status as a transport failure
func (e *StatusError) Unwrap() error {
	return models.ErrTransport
}

// StatusCode extracts the HTTP status from err, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Payload is an encoded request body
type Payload struct {
	ContentType string
	Body        []byte
}

// JSONPayload encodes v as a JSON request body
func JSONPayload(v any) (Payload, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return Payload{ContentType: "application/json", Body: body}, nil
}

// FormPayload encodes values as an urlencoded request body
func FormPayload(values url.Values) Payload {
	return Payload{ContentType: "application/x-www-form-urlencoded", Body: []byte(values.Encode())}
}

// Client issues authorized calls against the provider API
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a new provider Client
func NewClient(baseURL string, httpClient *http.Client, tokens *TokenManager, userAgent string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Get performs an authorized GET and returns the response body
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs an authorized POST with payload and returns the response body
func (c *Client) Post(ctx context.Context, path string, payload Payload) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, &payload)
}

// do sends the request; a 401/403 invalidates the token and the call is
// retried exactly once with a fresh one
func (c *Client) do(ctx context.Context, method, path string, payload *Payload) ([]byte, error) {
	body, err := c.send(ctx, method, path, payload)
	if code := StatusCode(err); (code == http.StatusUnauthorized || code == http.StatusForbidden) && c.tokens.CanRefresh() {
		c.logger.Info("provider rejected token, refreshing", slog.Int("status", code))
		c.tokens.Invalidate()
		body, err = c.send(ctx, method, path, payload)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, method, path string, payload *Payload) ([]byte, error) {
	token, err := c.tokens.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload.Body)
	}

	target := c.resolve(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", models.ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if payload != nil {
		req.Header.Set("Content-Type", payload.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", models.ErrTransport, method, redactURL(target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("provider call failed",
			slog.String("method", method),
			slog.String("url", redactURL(target)),
			slog.Int("status", resp.StatusCode))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	return data, nil
}

// resolve joins relative paths to the base URL; absolute links returned by
// the provider are used unchanged
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	if u.RawQuery != "" && pkglogger.SanitizeQueryString(u.RawQuery) {
		u.RawQuery = "[REDACTED]"
	}
	return u.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
