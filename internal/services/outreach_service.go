package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
)

// Generator turns a prompt into text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Limiter is the rate check surface used to protect generation
type Limiter interface {
	Check(ctx context.Context, identifier string) models.RateDecision
}

// OutreachService writes outreach messages behind the generation quota
type OutreachService struct {
	ledger    Ledger
	generator Generator
	limiter   Limiter
	logger    *slog.Logger
}

// NewOutreachService creates a new OutreachService. limiter may be nil.
func NewOutreachService(ledger Ledger, generator Generator, limiter Limiter, logger *slog.Logger) *OutreachService {
	return &OutreachService{
		ledger:    ledger,
		generator: generator,
		limiter:   limiter,
		logger:    logger,
	}
}

// Generate writes one message and charges a single generation on success
func (s *OutreachService) Generate(ctx context.Context, req models.OutreachRequest) (*models.OutreachMessage, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", models.ErrBadRequest)
	}
	if strings.TrimSpace(req.Company) == "" && strings.TrimSpace(req.ProspectEmail) == "" {
		return nil, fmt.Errorf("%w: company or prospect email is required", models.ErrBadRequest)
	}
	if s.generator == nil || s.ledger.LimitFor(req.Tier, models.ResourceGeneration) == 0 {
		return nil, models.ErrFeatureDisabled
	}

	if s.limiter != nil {
		if decision := s.limiter.Check(ctx, req.UserID); !decision.Allowed {
			return nil, models.ErrRateLimitExceeded
		}
	}

	remaining, err := s.ledger.Remaining(ctx, req.UserID, req.Tier, models.ResourceGeneration)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, models.ErrQuotaExceeded
	}

	text, err := s.generator.Generate(ctx, BuildOutreachPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate outreach: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("generate outreach: %w", models.ErrMalformedResponse)
	}

	charged, after, err := s.ledger.Charge(ctx, req.UserID, req.Tier, models.ResourceGeneration, 1)
	if err != nil {
		s.logger.Error("failed to charge generation",
			slog.String("user_id", req.UserID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: usage could not be recorded", models.ErrInternalServer)
	}
	if charged == 0 {
		return nil, models.ErrQuotaExceeded
	}

	return &models.OutreachMessage{Text: text, GenerationsRemaining: after}, nil
}

// BuildOutreachPrompt assembles the generation prompt from prospect fields
func BuildOutreachPrompt(req models.OutreachRequest) string {
	var b strings.Builder
	b.WriteString("Write a short, friendly first outreach email to a business contact. ")
	b.WriteString("Keep it under 120 words, plain text, no subject line.\n\n")

	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	field("Recipient first name", req.FirstName)
	field("Recipient title", req.Title)
	field("Company", req.Company)
	field("Recipient email", req.ProspectEmail)
	field("Sender notes", req.Notes)

	return b.String()
}
