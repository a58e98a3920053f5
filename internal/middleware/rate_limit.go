package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/prospector/internal/auth"
	"github.com/BradenHooton/prospector/internal/models"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	"github.com/go-chi/httprate"
)

// IPRateLimitConfig holds the unauthenticated per-IP budget
type IPRateLimitConfig struct {
	RequestsPerMinute int
	TrustedProxies    pkghttp.TrustedProxies
}

// RateLimitByIP limits requests per client IP before authentication runs
func RateLimitByIP(config IPRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ClientIP(r, config.TrustedProxies), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "too many requests, slow down")
		}),
	)
}

// Checker is satisfied by services.RateLimiter
type Checker interface {
	Check(ctx context.Context, identifier string) models.RateDecision
}

// RateLimitByUser applies a fixed-window limit keyed by the authenticated
// user. Must run after auth.AuthMiddleware.
func RateLimitByUser(limiter Checker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			decision := limiter.Check(r.Context(), claims.UserID)
			SetRateLimitHeaders(w, decision)

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				pkghttp.WriteTooManyRequests(w, "rate limit exceeded, try again shortly")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders writes the X-RateLimit-* headers for a decision
func SetRateLimitHeaders(w http.ResponseWriter, d models.RateDecision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}
