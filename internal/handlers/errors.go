package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/BradenHooton/prospector/internal/services"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	"github.com/go-chi/chi/v5/middleware"
)

// failure is the generic response used when an operation fails for a reason
// the caller cannot act on
type failure struct {
	code    string
	message string
}

var (
	searchFailure     = failure{code: "search_failed", message: "search failed, try again"}
	generationFailure = failure{code: "generation_failed", message: "generation failed, try again"}
)

// writeServiceError maps a service error onto the response envelope. Gate
// rejections carry an actionable message; anything else is logged and
// collapsed into the generic failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback failure) {
	switch {
	case errors.Is(err, models.ErrQuotaExceeded):
		pkghttp.WriteQuotaExceeded(w, "monthly limit reached for your plan, upgrade for more")
	case errors.Is(err, models.ErrFeatureDisabled):
		pkghttp.WriteFeatureDisabled(w, "this feature is not available on your plan")
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "too many requests, try again in a minute")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "unauthorized")
	default:
		pkghttp.WriteError(w, http.StatusBadGateway, fallback.code, fallback.message)
	}

	level := slog.LevelError
	if services.IsGateError(err) || errors.Is(err, models.ErrBadRequest) {
		level = slog.LevelInfo
	}
	logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err))
}
