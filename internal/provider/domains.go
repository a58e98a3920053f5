package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BrandHints expands broad industry keywords into well-known company names
// the provider can resolve to domains
var BrandHints = map[string][]string{
	"affiliate":         {"Impact", "CJ", "Awin", "ShareASale", "Rakuten", "PartnerStack"},
	"affiliate network": {"Impact", "CJ", "Awin", "ShareASale", "Rakuten"},
	"influencer":        {"Aspire", "GRIN", "Upfluence", "CreatorIQ"},
	"crm":               {"Salesforce", "HubSpot", "Pipedrive", "Zoho"},
	"email marketing":   {"Mailchimp", "Klaviyo", "Brevo", "ActiveCampaign"},
	"ecommerce":         {"Shopify", "BigCommerce", "WooCommerce"},
	"payments":          {"Stripe", "Adyen", "PayPal", "Checkout.com"},
	"analytics":         {"Mixpanel", "Amplitude", "Heap"},
}

// DomainResolver turns a free-text keyword into candidate company domains
type DomainResolver struct {
	client *Client
	policy RetryPolicy
	hints  map[string][]string
	logger *slog.Logger
}

// NewDomainResolver creates a new DomainResolver
func NewDomainResolver(client *Client, policy RetryPolicy, hints map[string][]string, logger *slog.Logger) *DomainResolver {
	if hints == nil {
		hints = BrandHints
	}
	return &DomainResolver{
		client: client,
		policy: policy,
		hints:  hints,
		logger: logger,
	}
}

// CandidateNames returns the de-duplicated company names submitted for a keyword
func (r *DomainResolver) CandidateNames(keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	names := []string{keyword, cases.Title(language.English).String(strings.ToLower(keyword))}
	names = append(names, r.hints[strings.ToLower(keyword)]...)

	seen := make(map[string]struct{}, len(names))
	unique := names[:0]
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		unique = append(unique, n)
	}
	return unique
}

type domainResult struct {
	Name   string `json:"name"`
	Result struct {
		Domain string `json:"domain"`
	} `json:"result"`
}

// ResolveDomains runs the company-domain-by-name task for keyword. A keyword
// nothing resolves for yields an empty slice and a nil error.
func (r *DomainResolver) ResolveDomains(ctx context.Context, keyword string) ([]string, error) {
	names := r.CandidateNames(keyword)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty keyword", models.ErrBadRequest)
	}

	payload, err := JSONPayload(map[string][]string{"names": names})
	if err != nil {
		return nil, err
	}
	body, err := r.client.Post(ctx, "/v2/company-domain-by-name/start", payload)
	if err != nil {
		return nil, fmt.Errorf("start domain resolve: %w", err)
	}
	hash, err := parseTaskHash(body)
	if err != nil {
		return nil, fmt.Errorf("start domain resolve: %w", err)
	}

	task := &models.AsyncTask{
		TaskHash:  hash,
		Kind:      models.TaskKindDomainResolve,
		StartedAt: time.Now(),
		Status:    models.TaskStatusPending,
	}

	var results []domainResult
	err = r.policy.Poll(ctx, task, func(ctx context.Context) (bool, error) {
		body, err := r.client.Get(ctx, "/v2/company-domain-by-name/result?task_hash="+url.QueryEscape(hash))
		if err != nil {
			return false, err
		}
		env, err := decodeEnvelope(body)
		if err != nil {
			return false, err
		}
		done, err := taskState(env, false)
		if !done || err != nil {
			return false, err
		}
		if !present(env.Data) {
			return true, nil
		}
		if err := json.Unmarshal(env.Data, &results); err != nil {
			return false, fmt.Errorf("%w: domain results: %v", models.ErrMalformedResponse, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve domains for %q: %w", keyword, err)
	}

	seen := make(map[string]struct{}, len(results))
	domains := make([]string, 0, len(results))
	for _, res := range results {
		domain, err := models.NormalizeDomain(res.Result.Domain)
		if err != nil {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}

	r.logger.Info("domains resolved",
		slog.String("keyword", keyword),
		slog.Int("names", len(names)),
		slog.Int("domains", len(domains)))

	return domains, nil
}
