package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
)

// Ledger is the quota surface the coordinator depends on
type Ledger interface {
	LimitFor(tier models.Tier, kind models.ResourceKind) int
	Remaining(ctx context.Context, userID string, tier models.Tier, kind models.ResourceKind) (int, error)
	Charge(ctx context.Context, userID string, tier models.Tier, kind models.ResourceKind, delta int) (int, int, error)
	Summary(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error)
}

// ProspectFinder drives the paid provider's asynchronous search tasks
type ProspectFinder interface {
	SearchDomain(ctx context.Context, domain string, positions []string, page, max int) ([]models.ProspectCandidate, error)
	SearchKeyword(ctx context.Context, keyword string, positions []string, max int) ([]models.ProspectCandidate, error)
}

// PublicEmailFinder scrapes a domain's public pages for addresses
type PublicEmailFinder interface {
	FindEmails(ctx context.Context, domain string, pageBudget int) ([]models.PublicEmailResult, error)
}

// QuotaNotifier tells a user that a monthly allowance ran out
type QuotaNotifier interface {
	SendQuotaExhaustedEmail(ctx context.Context, email string, kind models.ResourceKind, tier models.Tier) error
}

// SearchServiceConfig holds the gate and deadline settings of the coordinator
type SearchServiceConfig struct {
	ProviderEnabled bool
	MaxPerCall      int
	Deadline        time.Duration
	NotifyTimeout   time.Duration
}

// SearchService gates discovery calls on quota, runs them under a deadline
// and charges only for what was delivered
type SearchService struct {
	ledger    Ledger
	prospects ProspectFinder
	public    PublicEmailFinder
	notifier  QuotaNotifier
	config    SearchServiceConfig
	logger    *slog.Logger
	audit     *pkglogger.AuditLogger
}

// NewSearchService creates a new SearchService. prospects may be nil when the
// provider is not configured; notifier may be nil.
func NewSearchService(
	ledger Ledger,
	prospects ProspectFinder,
	public PublicEmailFinder,
	notifier QuotaNotifier,
	config SearchServiceConfig,
	logger *slog.Logger,
) *SearchService {
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 5 * time.Second
	}
	return &SearchService{
		ledger:    ledger,
		prospects: prospects,
		public:    public,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		audit:     pkglogger.NewAuditLogger(logger),
	}
}

// SearchProspects runs a paid prospect search
func (s *SearchService) SearchProspects(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !s.config.ProviderEnabled || s.prospects == nil {
		s.reject(req.UserID, models.ResourcePaidSearch, req.RequestedCount, "provider_disabled")
		return nil, models.ErrFeatureDisabled
	}
	if s.ledger.LimitFor(req.Tier, models.ResourcePaidSearch) == 0 {
		s.reject(req.UserID, models.ResourcePaidSearch, req.RequestedCount, "tier_disabled")
		return nil, models.ErrFeatureDisabled
	}

	remaining, err := s.ledger.Remaining(ctx, req.UserID, req.Tier, models.ResourcePaidSearch)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		s.reject(req.UserID, models.ResourcePaidSearch, req.RequestedCount, "quota_exhausted")
		return nil, models.ErrQuotaExceeded
	}

	want := min(req.RequestedCount, s.config.MaxPerCall)
	if remaining != models.Unlimited {
		want = min(want, remaining)
	}

	var domain string
	if req.Mode == models.SearchModeDomain {
		if domain, err = models.NormalizeDomain(req.Domain); err != nil {
			return nil, err
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.config.Deadline)
	defer cancel()

	var found []models.ProspectCandidate
	switch req.Mode {
	case models.SearchModeDomain:
		found, err = s.prospects.SearchDomain(searchCtx, domain, req.Positions(), 1, want)
	case models.SearchModeKeyword:
		found, err = s.prospects.SearchKeyword(searchCtx, strings.TrimSpace(req.Keyword), req.Positions(), want)
	}

	usable := usableProspects(found, want)
	if err != nil {
		deadlineHit := searchCtx.Err() != nil && ctx.Err() == nil
		switch {
		case deadlineHit && len(usable) > 0:
			s.logger.Warn("search deadline reached, returning partial results",
				slog.String("user_id", req.UserID),
				slog.Int("delivered", len(usable)))
		case deadlineHit:
			return nil, models.ErrSearchTimeout
		default:
			return nil, fmt.Errorf("prospect search: %w", err)
		}
	}

	if len(usable) == 0 {
		s.audit.LogSearch(pkglogger.UsageEvent{
			UserID:    req.UserID,
			Resource:  string(models.ResourcePaidSearch),
			Requested: req.RequestedCount,
		})
		return &models.SearchResult{Results: []models.ProspectCandidate{}, SearchesRemaining: remaining}, nil
	}

	charged, after, err := s.ledger.Charge(ctx, req.UserID, req.Tier, models.ResourcePaidSearch, len(usable))
	if err != nil {
		s.logger.Error("failed to charge delivered prospects",
			slog.String("user_id", req.UserID),
			slog.Int("delivered", len(usable)),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: usage could not be recorded", models.ErrInternalServer)
	}
	if charged == 0 {
		// A concurrent request consumed the remaining allowance
		return nil, models.ErrQuotaExceeded
	}
	usable = usable[:charged]

	s.audit.LogSearch(pkglogger.UsageEvent{
		UserID:    req.UserID,
		Resource:  string(models.ResourcePaidSearch),
		Tier:      string(req.Tier),
		Requested: req.RequestedCount,
		Delivered: len(usable),
		Charged:   charged,
		Remaining: after,
		Metadata:  map[string]string{"mode": string(req.Mode)},
	})
	s.notifyIfExhausted(ctx, req.Email, models.ResourcePaidSearch, req.Tier, after)

	return &models.SearchResult{
		Total:             len(usable),
		Results:           usable,
		SearchesRemaining: after,
	}, nil
}

// FindPublicEmails scrapes a domain's public pages. One search is charged
// only when at least one address was found.
func (s *SearchService) FindPublicEmails(ctx context.Context, req models.PublicFinderRequest) (*models.PublicFinderResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", models.ErrBadRequest)
	}
	domain, err := models.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}

	if s.public == nil || s.ledger.LimitFor(req.Tier, models.ResourcePublicFinder) == 0 {
		s.reject(req.UserID, models.ResourcePublicFinder, 1, "tier_disabled")
		return nil, models.ErrFeatureDisabled
	}

	remaining, err := s.ledger.Remaining(ctx, req.UserID, req.Tier, models.ResourcePublicFinder)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		s.reject(req.UserID, models.ResourcePublicFinder, 1, "quota_exhausted")
		return nil, models.ErrQuotaExceeded
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.config.Deadline)
	defer cancel()

	found, err := s.public.FindEmails(searchCtx, domain, req.PageBudget)
	if err != nil && len(found) == 0 {
		if searchCtx.Err() != nil && ctx.Err() == nil {
			return nil, models.ErrSearchTimeout
		}
		return nil, fmt.Errorf("public email search: %w", err)
	}

	result := &models.PublicFinderResult{
		Domain:            domain,
		Total:             len(found),
		Results:           found,
		SearchesRemaining: remaining,
	}
	if result.Results == nil {
		result.Results = []models.PublicEmailResult{}
	}
	if len(found) == 0 {
		return result, nil
	}

	_, after, err := s.ledger.Charge(ctx, req.UserID, req.Tier, models.ResourcePublicFinder, 1)
	if err != nil {
		s.logger.Error("failed to charge public email search",
			slog.String("user_id", req.UserID),
			slog.String("domain", domain),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: usage could not be recorded", models.ErrInternalServer)
	}
	result.SearchesRemaining = after

	s.audit.LogSearch(pkglogger.UsageEvent{
		UserID:    req.UserID,
		Resource:  string(models.ResourcePublicFinder),
		Tier:      string(req.Tier),
		Requested: 1,
		Delivered: len(found),
		Charged:   1,
		Remaining: after,
		Metadata:  map[string]string{"domain": domain},
	})
	s.notifyIfExhausted(ctx, req.Email, models.ResourcePublicFinder, req.Tier, after)

	return result, nil
}

// Usage returns the caller's current month usage for every resource
func (s *SearchService) Usage(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user", models.ErrBadRequest)
	}
	return s.ledger.Summary(ctx, userID, tier)
}

func (s *SearchService) reject(userID string, kind models.ResourceKind, requested int, reason string) {
	s.audit.LogSearch(pkglogger.UsageEvent{
		UserID:    userID,
		Resource:  string(kind),
		Requested: requested,
		Metadata:  map[string]string{"rejected": reason},
	})
}

// notifyIfExhausted is best-effort; failures are logged only
func (s *SearchService) notifyIfExhausted(ctx context.Context, email string, kind models.ResourceKind, tier models.Tier, remaining int) {
	if remaining != 0 || s.notifier == nil || email == "" {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.NotifyTimeout)
	defer cancel()

	if err := s.notifier.SendQuotaExhaustedEmail(notifyCtx, email, kind, tier); err != nil {
		s.logger.Warn("failed to send quota exhausted notice",
			pkglogger.EmailAttr("email", email),
			slog.String("resource", string(kind)),
			slog.Any("error", err))
	}
}

// usableProspects keeps candidates with an email, de-duplicated, capped at max
func usableProspects(found []models.ProspectCandidate, max int) []models.ProspectCandidate {
	seen := make(map[string]struct{}, len(found))
	usable := make([]models.ProspectCandidate, 0, min(len(found), max))
	for _, p := range found {
		if len(usable) >= max {
			break
		}
		if !p.HasEmail() {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(p.Email))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		usable = append(usable, p)
	}
	return usable
}

// IsGateError reports whether err is a quota, feature or rate gate rejection
func IsGateError(err error) bool {
	return errors.Is(err, models.ErrQuotaExceeded) ||
		errors.Is(err, models.ErrFeatureDisabled) ||
		errors.Is(err, models.ErrRateLimitExceeded)
}
