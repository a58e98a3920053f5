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

// OutreachService defines the interface for message generation
type OutreachService interface {
	Generate(ctx context.Context, req models.OutreachRequest) (*models.OutreachMessage, error)
}

// OutreachHandler handles AI outreach generation
type OutreachHandler struct {
	service OutreachService
	logger  *slog.Logger
}

// NewOutreachHandler creates a new OutreachHandler
func NewOutreachHandler(service OutreachService, logger *slog.Logger) *OutreachHandler {
	return &OutreachHandler{
		service: service,
		logger:  logger,
	}
}

// GenerateOutreachRequest is the body of POST /outreach/generate
type GenerateOutreachRequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name" validate:"max=100"`
	Company   string `json:"company" validate:"required,max=200"`
	Title     string `json:"title" validate:"max=200"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// Generate writes one outreach message for a prospect
//
// @Summary Generate outreach
// @Accept json
// @Produce json
// @Param request body GenerateOutreachRequest true "Prospect details"
// @Success 200 {object} models.OutreachMessage
// @Router /outreach/generate [post]
func (h *OutreachHandler) Generate(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req GenerateOutreachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.service.Generate(r.Context(), models.OutreachRequest{
		UserID:        claims.UserID,
		Email:         claims.Email,
		Tier:          claims.Tier,
		ProspectEmail: req.Email,
		FirstName:     req.FirstName,
		Company:       req.Company,
		Title:         req.Title,
		Notes:         req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, generationFailure)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, msg)
}
