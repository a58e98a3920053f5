package services

import (
	"context"
	"sync"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// MockProspectFinder implements ProspectFinder for testing
type MockProspectFinder struct {
	SearchDomainFunc  func(ctx context.Context, domain string, positions []string, page, max int) ([]models.ProspectCandidate, error)
	SearchKeywordFunc func(ctx context.Context, keyword string, positions []string, max int) ([]models.ProspectCandidate, error)

	mu    sync.Mutex
	Calls int
}

func (m *MockProspectFinder) SearchDomain(ctx context.Context, domain string, positions []string, page, max int) ([]models.ProspectCandidate, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.SearchDomainFunc != nil {
		return m.SearchDomainFunc(ctx, domain, positions, page, max)
	}
	return nil, nil
}

func (m *MockProspectFinder) SearchKeyword(ctx context.Context, keyword string, positions []string, max int) ([]models.ProspectCandidate, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.SearchKeywordFunc != nil {
		return m.SearchKeywordFunc(ctx, keyword, positions, max)
	}
	return nil, nil
}

// MockPublicEmailFinder implements PublicEmailFinder for testing
type MockPublicEmailFinder struct {
	FindEmailsFunc func(ctx context.Context, domain string, pageBudget int) ([]models.PublicEmailResult, error)
}

func (m *MockPublicEmailFinder) FindEmails(ctx context.Context, domain string, pageBudget int) ([]models.PublicEmailResult, error) {
	if m.FindEmailsFunc != nil {
		return m.FindEmailsFunc(ctx, domain, pageBudget)
	}
	return nil, nil
}

// MockQuotaNotifier records quota notices for testing
type MockQuotaNotifier struct {
	SendFunc func(ctx context.Context, email string, kind models.ResourceKind, tier models.Tier) error

	mu   sync.Mutex
	Sent []string
}

func (m *MockQuotaNotifier) SendQuotaExhaustedEmail(ctx context.Context, email string, kind models.ResourceKind, tier models.Tier) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, email)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, email, kind, tier)
	}
	return nil
}

// MockGenerator implements Generator for testing
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "Hello there", nil
}

// MockLimiter implements Limiter for testing
type MockLimiter struct {
	CheckFunc func(ctx context.Context, identifier string) models.RateDecision
}

func (m *MockLimiter) Check(ctx context.Context, identifier string) models.RateDecision {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, identifier)
	}
	return models.RateDecision{Allowed: true}
}

// MockSESClient implements SESAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)
	Inputs        []*ses.SendEmailInput
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.Inputs = append(m.Inputs, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

// FailingQuotaRepository returns err from every operation
type FailingQuotaRepository struct {
	Err error
}

func (f *FailingQuotaRepository) GetCount(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string) (int, error) {
	return 0, f.Err
}

func (f *FailingQuotaRepository) Increment(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta int) (int, error) {
	return 0, f.Err
}

func (f *FailingQuotaRepository) IncrementCapped(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta, limit int) (int, int, error) {
	return 0, 0, f.Err
}
