package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used for notices
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends quota notices using AWS SES
type AWSSESEmailService struct {
	sesClient   SESAPI
	fromAddress string
	upgradeURL  string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, upgradeURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, upgradeURL, logger), nil
}

// NewSESEmailServiceWithClient wires an existing SES client
func NewSESEmailServiceWithClient(client SESAPI, fromAddress, upgradeURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		upgradeURL:  upgradeURL,
		logger:      logger,
	}
}

var resourceLabels = map[models.ResourceKind]string{
	models.ResourcePaidSearch:   "prospect searches",
	models.ResourcePublicFinder: "public email lookups",
	models.ResourceGeneration:   "AI outreach generations",
}

// SendQuotaExhaustedEmail tells the user a monthly allowance is used up
func (s *AWSSESEmailService) SendQuotaExhaustedEmail(ctx context.Context, email string, kind models.ResourceKind, tier models.Tier) error {
	label, ok := resourceLabels[kind]
	if !ok {
		label = string(kind)
	}

	subject := fmt.Sprintf("You've used all your %s this month", label)
	textBody := quotaNoticeText(label, tier, s.upgradeURL)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send quota notice via SES",
			pkglogger.EmailAttr("email", email),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.logger.Info("quota notice sent",
		pkglogger.EmailAttr("email", email),
		slog.String("resource", string(kind)),
		slog.String("message_id", messageID))

	return nil
}

func quotaNoticeText(label string, tier models.Tier, upgradeURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have used all of your %s for this month on the %s plan.\n\n", label, tier)
	b.WriteString("Your allowance resets on the first day of next month (UTC).\n")
	if upgradeURL != "" && tier != models.TierPro {
		fmt.Fprintf(&b, "\nNeed more now? Upgrade your plan: %s\n", upgradeURL)
	}
	b.WriteString("\nThis is an automated message. Please do not reply to this email.\n")
	return b.String()
}
