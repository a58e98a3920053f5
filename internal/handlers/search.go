package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/prospector/internal/auth"
	"github.com/BradenHooton/prospector/internal/models"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
)

// SearchService defines the interface for discovery business logic
type SearchService interface {
	SearchProspects(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	FindPublicEmails(ctx context.Context, req models.PublicFinderRequest) (*models.PublicFinderResult, error)
	Usage(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error)
}

// SearchHandler handles prospect and public email search requests
type SearchHandler struct {
	service SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// Request DTOs

// ProspectSearchRequest is the body of POST /search/prospects
type ProspectSearchRequest struct {
	Mode      string `json:"mode" validate:"required,oneof=domain keyword"`
	Domain    string `json:"domain" validate:"required_if=Mode domain,excluded_unless=Mode domain,max=253"`
	Keyword   string `json:"keyword" validate:"required_if=Mode keyword,excluded_unless=Mode keyword,max=100"`
	TitleHint string `json:"title_hint" validate:"max=200"`
	Count     int    `json:"count" validate:"required,gte=1,lte=1000"`
}

// PublicEmailSearchRequest is the body of POST /search/public-emails
type PublicEmailSearchRequest struct {
	Domain string `json:"domain" validate:"required,max=253"`
	Pages  int    `json:"pages" validate:"omitempty,gte=1,lte=15"`
}

// SearchProspects runs a paid prospect search
//
// @Summary Search prospects
// @Accept json
// @Produce json
// @Param request body ProspectSearchRequest true "Search parameters"
// @Success 200 {object} models.SearchResult
// @Failure 402 {object} pkghttp.Envelope
// @Failure 403 {object} pkghttp.Envelope
// @Router /search/prospects [post]
func (h *SearchHandler) SearchProspects(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ProspectSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.SearchProspects(r.Context(), models.SearchRequest{
		UserID:         claims.UserID,
		Email:          claims.Email,
		Tier:           claims.Tier,
		Mode:           models.SearchMode(req.Mode),
		Domain:         req.Domain,
		Keyword:        req.Keyword,
		TitleHint:      req.TitleHint,
		RequestedCount: req.Count,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, searchFailure)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, result)
}

// FindPublicEmails scans a domain's public pages for contact addresses
//
// @Summary Find public emails
// @Accept json
// @Produce json
// @Param request body PublicEmailSearchRequest true "Domain to scan"
// @Success 200 {object} models.PublicFinderResult
// @Router /search/public-emails [post]
func (h *SearchHandler) FindPublicEmails(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req PublicEmailSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.FindPublicEmails(r.Context(), models.PublicFinderRequest{
		UserID:     claims.UserID,
		Email:      claims.Email,
		Tier:       claims.Tier,
		Domain:     req.Domain,
		PageBudget: req.Pages,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, searchFailure)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, result)
}

// Usage reports the caller's counters for the current month
//
// @Summary Current month usage
// @Produce json
// @Success 200 {object} models.UsageSummary
// @Router /usage [get]
func (h *SearchHandler) Usage(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	summary, err := h.service.Usage(r.Context(), claims.UserID, claims.Tier)
	if err != nil {
		h.logger.Error("failed to load usage", slog.String("user_id", claims.UserID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "could not load usage")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, summary)
}
