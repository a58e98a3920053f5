package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// MaxPageBudget caps the pages fetched per domain regardless of the request
const MaxPageBudget = 15

// CandidatePaths are the pages most likely to list contact addresses, in
// fetch order
var CandidatePaths = []string{
	"/", "/contact", "/contact-us", "/about", "/about-us", "/team", "/careers", "/jobs",
	"/support", "/help", "/legal", "/privacy", "/imprint", "/partners", "/press",
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Config tunes page fetching
type Config struct {
	UserAgent    string
	PageTimeout  time.Duration
	PageBudget   int
	PageInterval time.Duration
	MaxBodyBytes int64
}

// Scraper finds publicly listed addresses on a company's own website
type Scraper struct {
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
	origin     func(domain string) string
}

type Option func(*Scraper)

// WithOrigin overrides how a domain maps to the scheme and host pages are
// fetched from
func WithOrigin(origin func(domain string) string) Option {
	return func(s *Scraper) { s.origin = origin }
}

// New creates a new Scraper
func New(httpClient *http.Client, config Config, logger *slog.Logger, opts ...Option) *Scraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 8 * time.Second
	}
	if config.PageBudget <= 0 {
		config.PageBudget = 8
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 2 << 20
	}
	s := &Scraper{
		httpClient: httpClient,
		config:     config,
		logger:     logger,
		origin:     func(domain string) string { return "https://" + domain },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindEmails fetches up to pageBudget allowed pages of domain and returns the
// de-duplicated addresses at that domain. Failing pages are skipped.
func (s *Scraper) FindEmails(ctx context.Context, domain string, pageBudget int) ([]models.PublicEmailResult, error) {
	domain, err := models.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if pageBudget <= 0 {
		pageBudget = s.config.PageBudget
	}
	pageBudget = min(pageBudget, MaxPageBudget)

	origin := strings.TrimRight(s.origin(domain), "/")
	robots := s.fetchRobots(ctx, origin)

	limit := rate.Inf
	if s.config.PageInterval > 0 {
		limit = rate.Every(s.config.PageInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	seen := make(map[string]struct{})
	results := []models.PublicEmailResult{}
	fetched := 0

	for _, path := range CandidatePaths {
		if fetched >= pageBudget {
			break
		}
		if !robots.Allowed(path) {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		fetched++
		pageURL := origin + path
		emails, err := s.scrapePage(ctx, pageURL, domain)
		if err != nil {
			s.logger.Debug("skipping page", slog.String("url", pageURL), slog.Any("error", err))
			continue
		}

		for _, email := range emails {
			if _, dup := seen[email]; dup {
				continue
			}
			seen[email] = struct{}{}
			results = append(results, models.PublicEmailResult{
				Domain:    domain,
				Email:     email,
				Type:      Classify(email),
				SourceURL: pageURL,
			})
		}
	}

	s.logger.Info("public email scan completed",
		slog.String("domain", domain),
		slog.Int("pages", fetched),
		slog.Int("emails", len(results)))
	for _, r := range results {
		s.logger.Debug("public email found", pkglogger.EmailAttr("email", r.Email), slog.String("type", string(r.Type)))
	}

	if len(results) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return results, nil
}

func (s *Scraper) fetchRobots(ctx context.Context, origin string) RobotsPolicy {
	body, _, err := s.get(ctx, origin+"/robots.txt")
	if err != nil {
		return AllowAll
	}
	return ParseRobots(string(body))
}

// scrapePage returns the lower-cased addresses on pageURL that belong to domain
func (s *Scraper) scrapePage(ctx context.Context, pageURL, domain string) ([]string, error) {
	body, contentType, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if ct := strings.ToLower(contentType); ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var found []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		found = append(found, mailtoAddresses(href)...)
	})

	doc.Find("script, style, noscript").Remove()
	found = append(found, textAddresses(doc)...)

	return KeepDomain(found, domain), nil
}

// textAddresses matches each text node on its own so neighbouring cells and
// list items never run together into one address
func textAddresses(doc *goquery.Document) []string {
	var found []string
	doc.Find("*").Contents().Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		if node.Type != html.TextNode || !strings.Contains(node.Data, "@") {
			return
		}
		found = append(found, emailPattern.FindAllString(node.Data, -1)...)
	})
	return found
}

func (s *Scraper) get(ctx context.Context, target string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	reader, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		reader = resp.Body
	}

	body, err := io.ReadAll(io.LimitReader(reader, s.config.MaxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	return body, contentType, nil
}

func mailtoAddresses(href string) []string {
	href = strings.TrimSpace(href)
	if len(href) < 7 || !strings.EqualFold(href[:7], "mailto:") {
		return nil
	}
	addr, _, _ := strings.Cut(href[7:], "?")
	if unescaped, err := url.PathUnescape(addr); err == nil {
		addr = unescaped
	}

	var out []string
	for _, a := range strings.Split(addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// KeepDomain lower-cases and de-duplicates candidates, keeping only addresses
// whose domain part is exactly domain
func KeepDomain(candidates []string, domain string) []string {
	suffix := "@" + strings.ToLower(domain)
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		email := strings.ToLower(strings.Trim(strings.TrimSpace(c), ".,;:"))
		if !strings.HasSuffix(email, suffix) || strings.Count(email, "@") != 1 || len(email) == len(suffix) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
