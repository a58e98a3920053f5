package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/prospector/internal/config"
	"github.com/BradenHooton/prospector/internal/models"
	"github.com/BradenHooton/prospector/internal/repositories"
	"github.com/BradenHooton/prospector/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outreachRequest(tier models.Tier) models.OutreachRequest {
	return models.OutreachRequest{
		UserID:        "user-1",
		Tier:          tier,
		ProspectEmail: "jane@acme.com",
		FirstName:     "Jane",
		Company:       "Acme",
		Title:         "Head of Partnerships",
	}
}

func TestOutreachService_GenerateChargesOne(t *testing.T) {
	ledger := services.NewQuotaLedger(repositories.NewMemoryQuotaRepository(), config.DefaultQuotaLimits(), discardLogger())

	var prompt string
	gen := &services.MockGenerator{GenerateFunc: func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "  Hi Jane, ...  ", nil
	}}
	svc := services.NewOutreachService(ledger, gen, nil, discardLogger())

	msg, err := svc.Generate(context.Background(), outreachRequest(models.TierFree))
	require.NoError(t, err)

	assert.Equal(t, "Hi Jane, ...", msg.Text)
	assert.Equal(t, 29, msg.GenerationsRemaining)
	assert.Contains(t, prompt, "Recipient first name: Jane")
	assert.Contains(t, prompt, "Company: Acme")
	assert.NotContains(t, prompt, "Sender notes")
}

func TestOutreachService_QuotaExhausted(t *testing.T) {
	ledger := services.NewQuotaLedger(repositories.NewMemoryQuotaRepository(), config.DefaultQuotaLimits(), discardLogger())
	_, _, err := ledger.Charge(context.Background(), "user-1", models.TierFree, models.ResourceGeneration, 30)
	require.NoError(t, err)

	called := false
	gen := &services.MockGenerator{GenerateFunc: func(ctx context.Context, p string) (string, error) {
		called = true
		return "x", nil
	}}
	svc := services.NewOutreachService(ledger, gen, nil, discardLogger())

	_, err = svc.Generate(context.Background(), outreachRequest(models.TierFree))
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)
	assert.False(t, called)
}

func TestOutreachService_RateLimited(t *testing.T) {
	ledger := services.NewQuotaLedger(repositories.NewMemoryQuotaRepository(), config.DefaultQuotaLimits(), discardLogger())
	limiter := &services.MockLimiter{CheckFunc: func(ctx context.Context, id string) models.RateDecision {
		return models.RateDecision{Allowed: false}
	}}
	svc := services.NewOutreachService(ledger, &services.MockGenerator{}, limiter, discardLogger())

	_, err := svc.Generate(context.Background(), outreachRequest(models.TierPro))
	assert.ErrorIs(t, err, models.ErrRateLimitExceeded)
}

func TestOutreachService_GeneratorFailureIsNotCharged(t *testing.T) {
	ledger := services.NewQuotaLedger(repositories.NewMemoryQuotaRepository(), config.DefaultQuotaLimits(), discardLogger())
	gen := &services.MockGenerator{GenerateFunc: func(ctx context.Context, p string) (string, error) {
		return "", errors.New("model overloaded")
	}}
	svc := services.NewOutreachService(ledger, gen, nil, discardLogger())

	_, err := svc.Generate(context.Background(), outreachRequest(models.TierLight))
	require.Error(t, err)

	used, err := ledger.GetUsage(context.Background(), "user-1", models.ResourceGeneration)
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestOutreachService_RequiresTarget(t *testing.T) {
	ledger := services.NewQuotaLedger(repositories.NewMemoryQuotaRepository(), config.DefaultQuotaLimits(), discardLogger())
	svc := services.NewOutreachService(ledger, &services.MockGenerator{}, nil, discardLogger())

	_, err := svc.Generate(context.Background(), models.OutreachRequest{UserID: "user-1", Tier: models.TierPro})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
