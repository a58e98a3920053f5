package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// OrchestratorConfig tunes the prospect search task chain
type OrchestratorConfig struct {
	SearchPolicy        RetryPolicy
	EnrichPolicy        RetryPolicy
	EmailPreference     []string // SMTP statuses in order of preference
	EnrichConcurrency   int
	MaxCandidateDomains int
}

// DefaultOrchestratorConfig returns the production poll schedules and limits
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		SearchPolicy:        ProspectSearchPolicy,
		EnrichPolicy:        EnrichPolicy,
		EmailPreference:     []string{"valid", "unknown"},
		EnrichConcurrency:   4,
		MaxCandidateDomains: 3,
	}
}

// startPayload is one accepted encoding of the prospect search start call
type startPayload struct {
	name  string
	build func(domain string, page int, positions []string) (Payload, error)
}

// startPayloads are tried in order; a 400 or 415 moves on to the next shape
var startPayloads = []startPayload{
	{
		name: "json",
		build: func(domain string, page int, positions []string) (Payload, error) {
			body := map[string]any{"domain": domain, "page": page}
			if len(positions) > 0 {
				body["positions"] = positions
			}
			return JSONPayload(body)
		},
	},
	{
		name: "form",
		build: func(domain string, page int, positions []string) (Payload, error) {
			values := url.Values{}
			values.Set("domain", domain)
			values.Set("page", strconv.Itoa(page))
			for _, p := range positions {
				values.Add("positions[]", p)
			}
			return FormPayload(values), nil
		},
	},
}

type emailRecord struct {
	Email      string `json:"email"`
	SMTPStatus string `json:"smtp_status"`
}

type prospectRecord struct {
	FirstName         string        `json:"first_name"`
	LastName          string        `json:"last_name"`
	Position          string        `json:"position"`
	SourcePage        string        `json:"source_page"`
	LinkedIn          string        `json:"linkedin"`
	Email             string        `json:"email"`
	SMTPStatus        string        `json:"smtp_status"`
	Emails            []emailRecord `json:"emails"`
	Phone             string        `json:"phone"`
	Industry          string        `json:"industry"`
	CompanyName       string        `json:"company_name"`
	CompanySize       string        `json:"company_size"`
	SearchEmailsStart string        `json:"search_emails_start"`
}

// TaskOrchestrator drives the provider's prospect search and email
// enrichment tasks
type TaskOrchestrator struct {
	client   *Client
	resolver *DomainResolver
	config   OrchestratorConfig
	logger   *slog.Logger
}

// NewTaskOrchestrator creates a new TaskOrchestrator
func NewTaskOrchestrator(client *Client, resolver *DomainResolver, config OrchestratorConfig, logger *slog.Logger) *TaskOrchestrator {
	if config.EnrichConcurrency <= 0 {
		config.EnrichConcurrency = 1
	}
	if config.MaxCandidateDomains <= 0 {
		config.MaxCandidateDomains = 3
	}
	if len(config.EmailPreference) == 0 {
		config.EmailPreference = []string{"valid", "unknown"}
	}
	return &TaskOrchestrator{
		client:   client,
		resolver: resolver,
		config:   config,
		logger:   logger,
	}
}

// SearchDomain returns up to max prospects with an email for one domain
func (o *TaskOrchestrator) SearchDomain(ctx context.Context, domain string, positions []string, page, max int) ([]models.ProspectCandidate, error) {
	domain, err := models.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		return []models.ProspectCandidate{}, nil
	}
	if page <= 0 {
		page = 1
	}

	hash, err := o.startSearch(ctx, domain, page, positions)
	if err != nil {
		return nil, fmt.Errorf("start prospect search for %s: %w", domain, err)
	}

	task := &models.AsyncTask{
		TaskHash:  hash,
		Kind:      models.TaskKindProspectSearch,
		StartedAt: time.Now(),
		Status:    models.TaskStatusPending,
	}

	var records []prospectRecord
	err = o.config.SearchPolicy.Poll(ctx, task, func(ctx context.Context) (bool, error) {
		body, err := o.client.Get(ctx, "/v2/domain-search/prospects/result/"+url.PathEscape(hash))
		if err != nil {
			return false, err
		}
		env, err := decodeEnvelope(body)
		if err != nil {
			return false, err
		}
		raw, found := resultList(env, env.Prospects, "prospects")
		done, err := taskState(env, found)
		if !done || err != nil {
			return false, err
		}
		records, err = decodeProspects(raw)
		return err == nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("prospect search for %s: %w", domain, err)
	}

	candidates := make([]models.ProspectCandidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, o.toCandidate(rec, domain))
	}

	o.enrich(ctx, candidates, max)

	result := dedupeProspects(nil, candidates, max)
	o.logger.Info("prospect search completed",
		slog.String("domain", domain),
		slog.Int("found", len(records)),
		slog.Int("with_email", len(result)))

	if len(result) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return result, nil
}

// SearchKeyword resolves keyword to candidate domains and searches them in
// order until max prospects are collected
func (o *TaskOrchestrator) SearchKeyword(ctx context.Context, keyword string, positions []string, max int) ([]models.ProspectCandidate, error) {
	keyword = strings.TrimSpace(keyword)
	if models.LooksLikeDomain(keyword) {
		return o.SearchDomain(ctx, keyword, positions, 1, max)
	}
	if o.resolver == nil {
		return nil, fmt.Errorf("%w: keyword search needs a domain resolver", models.ErrFeatureDisabled)
	}

	domains, err := o.resolver.ResolveDomains(ctx, keyword)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !models.IsCandidateFailure(err) {
			return nil, err
		}
		o.logger.Warn("domain resolution failed", slog.String("keyword", keyword), slog.Any("error", err))
		return []models.ProspectCandidate{}, nil
	}
	if len(domains) > o.config.MaxCandidateDomains {
		domains = domains[:o.config.MaxCandidateDomains]
	}

	var acc []models.ProspectCandidate
	for _, domain := range domains {
		if len(acc) >= max || ctx.Err() != nil {
			break
		}

		found, err := o.SearchDomain(ctx, domain, positions, 1, max-len(acc))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if models.IsCandidateFailure(err) || errors.Is(err, models.ErrBadRequest) {
				o.logger.Warn("skipping candidate domain",
					slog.String("keyword", keyword),
					slog.String("domain", domain),
					slog.Any("error", err))
				continue
			}
			if len(acc) == 0 {
				return nil, err
			}
			break
		}
		acc = dedupeProspects(acc, found, max)
	}

	if len(acc) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []models.ProspectCandidate{}, nil
	}
	return acc, nil
}

func (o *TaskOrchestrator) startSearch(ctx context.Context, domain string, page int, positions []string) (string, error) {
	var lastErr error
	for _, shape := range startPayloads {
		payload, err := shape.build(domain, page, positions)
		if err != nil {
			return "", err
		}

		body, err := o.client.Post(ctx, "/v2/domain-search/prospects/start", payload)
		if err != nil {
			code := StatusCode(err)
			if code == http.StatusBadRequest || code == http.StatusUnsupportedMediaType {
				o.logger.Debug("start payload rejected, trying next shape",
					slog.String("shape", shape.name),
					slog.Int("status", code))
				lastErr = err
				continue
			}
			return "", err
		}
		return parseTaskHash(body)
	}
	return "", lastErr
}

// enrich resolves missing emails through search-email sub-tasks. Only as many
// candidates as are still needed to reach limit are enriched.
func (o *TaskOrchestrator) enrich(ctx context.Context, candidates []models.ProspectCandidate, limit int) {
	have := 0
	var pending []int
	for i := range candidates {
		switch {
		case candidates[i].HasEmail():
			have++
		case candidates[i].EnrichURL != "":
			pending = append(pending, i)
		}
	}
	if need := limit - have; len(pending) > need {
		pending = pending[:max(need, 0)]
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.EnrichConcurrency)
	for _, idx := range pending {
		g.Go(func() error {
			email, status, err := o.enrichOne(gctx, candidates[idx].EnrichURL)
			if err != nil {
				o.logger.Warn("email enrichment failed",
					slog.String("domain", candidates[idx].SourceDomain),
					slog.Any("error", err))
				return nil
			}
			candidates[idx].Email = email
			candidates[idx].EmailStatus = status
			return nil
		})
	}
	_ = g.Wait()
}

func (o *TaskOrchestrator) enrichOne(ctx context.Context, startURL string) (string, string, error) {
	payload, err := JSONPayload(struct{}{})
	if err != nil {
		return "", "", err
	}
	body, err := o.client.Post(ctx, startURL, payload)
	if err != nil {
		return "", "", fmt.Errorf("start email search: %w", err)
	}
	hash, err := parseTaskHash(body)
	if err != nil {
		return "", "", err
	}

	task := &models.AsyncTask{
		TaskHash:  hash,
		Kind:      models.TaskKindEmailEnrich,
		StartedAt: time.Now(),
		Status:    models.TaskStatusPending,
	}

	var emails []emailRecord
	err = o.config.EnrichPolicy.Poll(ctx, task, func(ctx context.Context) (bool, error) {
		body, err := o.client.Get(ctx, "/v2/domain-search/prospects/search-emails/result/"+url.PathEscape(hash))
		if err != nil {
			return false, err
		}
		env, err := decodeEnvelope(body)
		if err != nil {
			return false, err
		}
		raw, found := resultList(env, env.Emails, "emails")
		done, err := taskState(env, found)
		if !done || err != nil {
			return false, err
		}
		emails, err = decodeEmails(raw)
		return err == nil, err
	})
	if err != nil {
		return "", "", err
	}

	email, status := chooseEmail(emails, o.config.EmailPreference)
	if email == "" {
		email, status = bestAvailable(emails)
	}
	if email == "" {
		return "", "", fmt.Errorf("%w: no usable email", models.ErrTaskFailed)
	}
	o.logger.Debug("email enriched", pkglogger.EmailAttr("email", email), slog.String("smtp_status", status))
	return email, status, nil
}

func (o *TaskOrchestrator) toCandidate(rec prospectRecord, domain string) models.ProspectCandidate {
	c := models.ProspectCandidate{
		FirstName:    strings.TrimSpace(rec.FirstName),
		LastName:     strings.TrimSpace(rec.LastName),
		Title:        strings.TrimSpace(rec.Position),
		Phone:        rec.Phone,
		Industry:     rec.Industry,
		CompanySize:  rec.CompanySize,
		Company:      rec.CompanyName,
		SourceDomain: domain,
		EnrichURL:    rec.SearchEmailsStart,
	}
	if c.Company == "" {
		c.Company = domain
	}

	c.LinkedInURL = rec.LinkedIn
	if c.LinkedInURL == "" && strings.Contains(rec.SourcePage, "linkedin.com") {
		c.LinkedInURL = rec.SourcePage
	}

	emails := rec.Emails
	if rec.Email != "" {
		emails = append([]emailRecord{{Email: rec.Email, SMTPStatus: rec.SMTPStatus}}, emails...)
	}
	if len(emails) == 0 {
		return c
	}
	if email, status := chooseEmail(emails, o.config.EmailPreference); email != "" {
		c.Email, c.EmailStatus = email, status
		return c
	}
	switch {
	case c.EnrichURL == "":
		// nothing better is coming
		c.Email, c.EmailStatus = bestAvailable(emails)
		if c.Email != "" {
			o.logger.Debug("accepting email outside preference",
				pkglogger.EmailAttr("email", c.Email),
				slog.String("smtp_status", c.EmailStatus))
		}
	case rec.Email != "" && rec.SMTPStatus == "":
		// direct address without a verification status
		c.Email = strings.TrimSpace(rec.Email)
	}
	return c
}

// chooseEmail picks the first address whose SMTP status appears earliest in
// preference. Addresses with other statuses are never chosen.
func chooseEmail(emails []emailRecord, preference []string) (string, string) {
	for _, want := range preference {
		for _, e := range emails {
			if strings.EqualFold(strings.TrimSpace(e.SMTPStatus), want) && strings.Contains(e.Email, "@") {
				return strings.TrimSpace(e.Email), strings.ToLower(want)
			}
		}
	}
	return "", ""
}

// rejectedStatuses mark addresses the provider found undeliverable
var rejectedStatuses = map[string]struct{}{
	"invalid":       {},
	"not_valid":     {},
	"bounced":       {},
	"undeliverable": {},
}

// bestAvailable returns the first well-formed address not marked
// undeliverable, used when nothing matches the preference order
func bestAvailable(emails []emailRecord) (string, string) {
	for _, e := range emails {
		status := strings.ToLower(strings.TrimSpace(e.SMTPStatus))
		if _, bad := rejectedStatuses[status]; bad || !strings.Contains(e.Email, "@") {
			continue
		}
		return strings.TrimSpace(e.Email), status
	}
	return "", ""
}

// dedupeProspects appends candidates with an unseen email to acc, up to max
func dedupeProspects(acc, found []models.ProspectCandidate, max int) []models.ProspectCandidate {
	seen := make(map[string]struct{}, len(acc)+len(found))
	for _, p := range acc {
		seen[strings.ToLower(p.Email)] = struct{}{}
	}
	for _, p := range found {
		if len(acc) >= max {
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
		acc = append(acc, p)
	}
	if acc == nil {
		acc = []models.ProspectCandidate{}
	}
	return acc
}

// decodeProspects reads a located prospect list; a completed task with no
// list is an empty result
func decodeProspects(raw json.RawMessage) ([]prospectRecord, error) {
	if !present(raw) {
		return nil, nil
	}
	var records []prospectRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: prospects: %v", models.ErrMalformedResponse, err)
	}
	return records, nil
}

func decodeEmails(raw json.RawMessage) ([]emailRecord, error) {
	if !present(raw) {
		return nil, nil
	}
	var emails []emailRecord
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil, fmt.Errorf("%w: emails: %v", models.ErrMalformedResponse, err)
	}
	return emails, nil
}
