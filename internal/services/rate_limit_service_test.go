package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/BradenHooton/prospector/internal/repositories"
	"github.com/BradenHooton/prospector/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time            { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type brokenWindowStore struct{}

func (brokenWindowStore) Hit(ctx context.Context, identifier string, length time.Duration, max int, now time.Time) (models.RateWindow, bool, error) {
	return models.RateWindow{}, false, errors.New("connection refused")
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)}
	limiter := services.NewRateLimiter(repositories.NewMemoryWindowStore(),
		services.GenerationRateLimit(10), discardLogger(), services.WithRateLimitClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		decision := limiter.Check(ctx, "user-1")
		require.True(t, decision.Allowed, "request %d", i)
		assert.Equal(t, 10-i, decision.Remaining)
		assert.Equal(t, 10, decision.Limit)
	}

	decision := limiter.Check(ctx, "user-1")
	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, clock.now.Add(time.Minute), decision.ResetAt)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)}
	limiter := services.NewRateLimiter(repositories.NewMemoryWindowStore(),
		services.RateLimitConfig{Name: "test", MaxRequests: 2, Window: time.Minute},
		discardLogger(), services.WithRateLimitClock(clock.Now))
	ctx := context.Background()

	assert.True(t, limiter.Check(ctx, "u").Allowed)
	assert.True(t, limiter.Check(ctx, "u").Allowed)
	assert.False(t, limiter.Check(ctx, "u").Allowed)

	// still inside the window at exactly start+window
	clock.Advance(time.Minute)
	assert.False(t, limiter.Check(ctx, "u").Allowed)

	clock.Advance(time.Millisecond)
	decision := limiter.Check(ctx, "u")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Remaining)
}

func TestRateLimiter_SeparatesLimiterClasses(t *testing.T) {
	store := repositories.NewMemoryWindowStore()
	ctx := context.Background()

	gen := services.NewRateLimiter(store, services.RateLimitConfig{Name: "generation", MaxRequests: 1, Window: time.Minute}, discardLogger())
	api := services.NewRateLimiter(store, services.RateLimitConfig{Name: "api", MaxRequests: 1, Window: time.Minute}, discardLogger())

	assert.True(t, gen.Check(ctx, "u").Allowed)
	assert.True(t, api.Check(ctx, "u").Allowed)
	assert.False(t, gen.Check(ctx, "u").Allowed)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	limiter := services.NewRateLimiter(brokenWindowStore{}, services.APIRateLimit(60), discardLogger())

	decision := limiter.Check(context.Background(), "user-1")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 60, decision.Remaining)
}

func TestRateLimitPresets(t *testing.T) {
	assert.Equal(t, time.Minute, services.GenerationRateLimit(10).Window)
	assert.Equal(t, 60, services.APIRateLimit(60).MaxRequests)

	auth := services.AuthRateLimit(20)
	assert.Equal(t, 15*time.Minute, auth.Window)
	assert.Equal(t, 20, auth.MaxRequests)
}
