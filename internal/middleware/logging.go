package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/prospector/internal/auth"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger, trusted pkghttp.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Auth runs further down the chain; capture the claims it stores
			holder := &claimsHolder{}
			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), claimsHolderKey{}, holder)))

			path := r.URL.Path
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path = path + "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path = r.URL.Path + "?" + r.URL.RawQuery
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int64("bytes", int64(wrapped.BytesWritten())),
				slog.String("duration", time.Since(start).String()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", pkghttp.ClientIP(r, trusted)),
			}
			if holder.userID != "" {
				attrs = append(attrs, slog.String("user_id", holder.userID), slog.String("tier", holder.tier))
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.LogAttrs(context.Background(), level, "http_request", attrs...)
		})
	}
}

type claimsHolderKey struct{}

type claimsHolder struct {
	userID string
	tier   string
}

// TrackUser records the authenticated caller for SecureLogger. Mount it
// directly after auth.AuthMiddleware.
func TrackUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(claimsHolderKey{}).(*claimsHolder); ok {
			if claims := auth.GetUserFromContext(r); claims != nil {
				holder.userID = claims.UserID
				holder.tier = string(claims.Tier)
			}
		}
		next.ServeHTTP(w, r)
	})
}
