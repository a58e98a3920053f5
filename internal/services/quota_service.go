package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
)

// QuotaRepository defines the storage operations behind the ledger.
// Increment and IncrementCapped must be atomic per (user, kind, month).
type QuotaRepository interface {
	GetCount(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string) (int, error)
	Increment(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta int) (int, error)
	IncrementCapped(ctx context.Context, userID string, kind models.ResourceKind, yearMonth string, delta, limit int) (int, int, error)
}

// QuotaLimits maps resource kind and tier to a monthly cap (-1 unlimited)
type QuotaLimits map[models.ResourceKind]map[models.Tier]int

// QuotaLedger meters the monthly resources of each user
type QuotaLedger struct {
	repo   QuotaRepository
	limits QuotaLimits
	logger *slog.Logger
	audit  *pkglogger.AuditLogger
	now    func() time.Time
}

type QuotaLedgerOption func(*QuotaLedger)

// WithQuotaClock overrides the clock used to pick the current month
func WithQuotaClock(now func() time.Time) QuotaLedgerOption {
	return func(l *QuotaLedger) { l.now = now }
}

// WithAuditLogger records every committed charge
func WithAuditLogger(audit *pkglogger.AuditLogger) QuotaLedgerOption {
	return func(l *QuotaLedger) { l.audit = audit }
}

// NewQuotaLedger creates a new QuotaLedger
func NewQuotaLedger(repo QuotaRepository, limits QuotaLimits, logger *slog.Logger, opts ...QuotaLedgerOption) *QuotaLedger {
	l := &QuotaLedger{
		repo:   repo,
		limits: limits,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LimitFor resolves the monthly cap of a resource for a tier. Unknown
// combinations resolve to 0, i.e. disabled.
func (l *QuotaLedger) LimitFor(tier models.Tier, kind models.ResourceKind) int {
	byTier, ok := l.limits[kind]
	if !ok {
		return 0
	}
	return byTier[tier]
}

// GetUsage returns the user's count for the current month
func (l *QuotaLedger) GetUsage(ctx context.Context, userID string, kind models.ResourceKind) (int, error) {
	count, err := l.repo.GetCount(ctx, userID, kind, l.currentMonth())
	if err != nil {
		return 0, fmt.Errorf("failed to read quota usage: %w", err)
	}
	return count, nil
}

// Increment adds delta to the current month, creating the record if needed
func (l *QuotaLedger) Increment(ctx context.Context, userID string, kind models.ResourceKind, delta int) (int, error) {
	count, err := l.repo.Increment(ctx, userID, kind, l.currentMonth(), delta)
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota usage: %w", err)
	}
	return count, nil
}

// Remaining returns how many units the user may still consume this month,
// or models.Unlimited
func (l *QuotaLedger) Remaining(ctx context.Context, userID string, tier models.Tier, kind models.ResourceKind) (int, error) {
	limit := l.LimitFor(tier, kind)
	if limit == models.Unlimited {
		return models.Unlimited, nil
	}
	if limit <= 0 {
		return 0, nil
	}

	used, err := l.GetUsage(ctx, userID, kind)
	if err != nil {
		return 0, err
	}
	return max(limit-used, 0), nil
}

// Charge commits up to delta units without exceeding the tier limit and
// returns the units actually charged plus what remains afterwards
func (l *QuotaLedger) Charge(ctx context.Context, userID string, tier models.Tier, kind models.ResourceKind, delta int) (int, int, error) {
	if delta <= 0 {
		remaining, err := l.Remaining(ctx, userID, tier, kind)
		return 0, remaining, err
	}

	limit := l.LimitFor(tier, kind)
	if limit == 0 {
		return 0, 0, models.ErrFeatureDisabled
	}

	charged, count, err := l.repo.IncrementCapped(ctx, userID, kind, l.currentMonth(), delta, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to charge quota: %w", err)
	}

	remaining := models.Unlimited
	if limit != models.Unlimited {
		remaining = max(limit-count, 0)
	}

	if l.audit != nil {
		l.audit.LogQuotaCharge(pkglogger.UsageEvent{
			UserID:    userID,
			Resource:  string(kind),
			Tier:      string(tier),
			Charged:   charged,
			Remaining: remaining,
		})
	}

	return charged, remaining, nil
}

// Summary reports usage of every resource for the current month
func (l *QuotaLedger) Summary(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error) {
	summary := &models.UsageSummary{
		UserID:    userID,
		Tier:      tier,
		YearMonth: l.currentMonth(),
		Resources: make(map[models.ResourceKind]models.ResourceUsage, len(models.ResourceKinds)),
	}

	for _, kind := range models.ResourceKinds {
		used, err := l.GetUsage(ctx, userID, kind)
		if err != nil {
			return nil, err
		}

		limit := l.LimitFor(tier, kind)
		remaining := models.Unlimited
		if limit != models.Unlimited {
			remaining = max(limit-used, 0)
		}

		summary.Resources[kind] = models.ResourceUsage{Used: used, Limit: limit, Remaining: remaining}
	}

	return summary, nil
}

func (l *QuotaLedger) currentMonth() string {
	return models.YearMonth(l.now())
}
