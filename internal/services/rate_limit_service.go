package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
)

// WindowStore performs an atomic fixed-window hit for one identifier.
// allowed=false means the window is full and was left untouched.
type WindowStore interface {
	Hit(ctx context.Context, identifier string, length time.Duration, max int, now time.Time) (models.RateWindow, bool, error)
}

// RateLimitConfig holds the fixed window parameters of one route class
type RateLimitConfig struct {
	Name        string // namespaces identifiers so one store serves many classes
	MaxRequests int
	Window      time.Duration
}

// GenerationRateLimit protects AI generation calls
func GenerationRateLimit(perMinute int) RateLimitConfig {
	return RateLimitConfig{Name: "generation", MaxRequests: perMinute, Window: time.Minute}
}

// APIRateLimit is the general per-user API budget
func APIRateLimit(perMinute int) RateLimitConfig {
	return RateLimitConfig{Name: "api", MaxRequests: perMinute, Window: time.Minute}
}

// AuthRateLimit guards credential-bearing routes
func AuthRateLimit(per15Minutes int) RateLimitConfig {
	return RateLimitConfig{Name: "auth", MaxRequests: per15Minutes, Window: 15 * time.Minute}
}

// RateLimiter is a fixed-window request counter keyed by an identifier
type RateLimiter struct {
	store  WindowStore
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

type RateLimiterOption func(*RateLimiter)

// WithRateLimitClock overrides the limiter's time source
func WithRateLimitClock(now func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

// NewRateLimiter creates a new RateLimiter
func NewRateLimiter(store WindowStore, config RateLimitConfig, logger *slog.Logger, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the limiter's window parameters
func (l *RateLimiter) Config() RateLimitConfig {
	return l.config
}

// Check counts one request for identifier and reports whether it may proceed
func (l *RateLimiter) Check(ctx context.Context, identifier string) models.RateDecision {
	now := l.now()
	key := l.config.Name + ":" + identifier

	window, allowed, err := l.store.Hit(ctx, key, l.config.Window, l.config.MaxRequests, now)
	if err != nil {
		// Fail open
		l.logger.Error("rate limit store unavailable",
			slog.String("limiter", l.config.Name),
			slog.Any("error", err))
		return models.RateDecision{
			Allowed:   true,
			Limit:     l.config.MaxRequests,
			Remaining: l.config.MaxRequests,
			ResetAt:   now.Add(l.config.Window),
		}
	}

	decision := models.RateDecision{
		Allowed: allowed,
		Limit:   l.config.MaxRequests,
		ResetAt: window.ResetAt(l.config.Window),
	}
	if allowed {
		decision.Remaining = max(l.config.MaxRequests-window.Count, 0)
	} else {
		l.logger.Warn("rate limit exceeded",
			slog.String("limiter", l.config.Name),
			slog.String("identifier", identifier),
			slog.Int("count", window.Count))
	}

	return decision
}
