package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenStrategy is one candidate way of exchanging client credentials
type TokenStrategy struct {
	URL       string
	AuthStyle oauth2.AuthStyle
}

func (s TokenStrategy) String() string {
	style := "params"
	if s.AuthStyle == oauth2.AuthStyleInHeader {
		style = "basic"
	}
	return s.URL + " (" + style + ")"
}

// StrategiesFor expands token URLs into strategies: each URL is tried with
// credentials in the form body first, then with HTTP Basic.
func StrategiesFor(urls []string) []TokenStrategy {
	strategies := make([]TokenStrategy, 0, len(urls)*2)
	for _, u := range urls {
		strategies = append(strategies,
			TokenStrategy{URL: u, AuthStyle: oauth2.AuthStyleInParams},
			TokenStrategy{URL: u, AuthStyle: oauth2.AuthStyleInHeader},
		)
	}
	return strategies
}

// TokenConfig holds provider credentials. A non-empty APIKey is used as-is
// and disables the exchange.
type TokenConfig struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	Strategies   []TokenStrategy
	SafetyMargin time.Duration
	DefaultTTL   time.Duration
}

// TokenManager caches the provider bearer token and renews it on demand
type TokenManager struct {
	config     TokenConfig
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(config TokenConfig, httpClient *http.Client, logger *slog.Logger) *TokenManager {
	if config.SafetyMargin <= 0 {
		config.SafetyMargin = 60 * time.Second
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = time.Hour
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureToken returns a usable bearer token, exchanging credentials when the
// cached one is missing or about to expire
func (m *TokenManager) EnsureToken(ctx context.Context) (string, error) {
	if m.config.APIKey != "" {
		return m.config.APIKey, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, nil
	}

	if m.config.ClientID == "" || m.config.ClientSecret == "" {
		return "", fmt.Errorf("%w: no credentials configured", models.ErrAuthUnavailable)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	for _, strategy := range m.config.Strategies {
		cc := clientcredentials.Config{
			ClientID:     m.config.ClientID,
			ClientSecret: m.config.ClientSecret,
			TokenURL:     strategy.URL,
			AuthStyle:    strategy.AuthStyle,
		}

		tok, err := cc.Token(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			m.logger.Warn("token exchange failed, trying next strategy",
				slog.String("strategy", strategy.String()),
				slog.Any("error", err))
			continue
		}
		if tok.AccessToken == "" {
			continue
		}

		expiry := tok.Expiry
		if expiry.IsZero() {
			expiry = m.now().Add(m.config.DefaultTTL)
		}
		m.token = tok.AccessToken
		m.expiresAt = expiry.Add(-m.config.SafetyMargin)

		m.logger.Info("provider token acquired",
			slog.String("strategy", strategy.String()),
			slog.Time("expires_at", m.expiresAt))
		return m.token, nil
	}

	return "", fmt.Errorf("%w: all %d token strategies failed", models.ErrAuthUnavailable, len(m.config.Strategies))
}

// Invalidate drops the cached token so the next call re-exchanges
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

// CanRefresh reports whether invalidating the token can produce a new one
func (m *TokenManager) CanRefresh() bool {
	return m.config.APIKey == ""
}
