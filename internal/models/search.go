package models

import (
	"fmt"
	"strings"
)

// SearchMode selects how a paid prospect search is scoped
type SearchMode string

const (
	SearchModeDomain  SearchMode = "domain"
	SearchModeKeyword SearchMode = "keyword"
)

// SearchRequest is a paid prospect search on behalf of a user
type SearchRequest struct {
	UserID         string
	Email          string // caller's address, used for quota notices
	Tier           Tier
	Mode           SearchMode
	Domain         string
	Keyword        string
	TitleHint      string
	RequestedCount int
}

// Validate enforces that exactly the field matching Mode is set
func (r SearchRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrBadRequest)
	}
	if r.RequestedCount <= 0 {
		return fmt.Errorf("%w: count must be positive", ErrBadRequest)
	}

	domain := strings.TrimSpace(r.Domain)
	keyword := strings.TrimSpace(r.Keyword)

	switch r.Mode {
	case SearchModeDomain:
		if domain == "" || keyword != "" {
			return fmt.Errorf("%w: domain mode requires a domain and no keyword", ErrBadRequest)
		}
	case SearchModeKeyword:
		if keyword == "" || domain != "" {
			return fmt.Errorf("%w: keyword mode requires a keyword and no domain", ErrBadRequest)
		}
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrBadRequest, r.Mode)
	}
	return nil
}

// Positions expands the title hint into the provider's position filter
func (r SearchRequest) Positions() []string {
	var positions []string
	for _, p := range strings.Split(r.TitleHint, ",") {
		if p = strings.TrimSpace(p); p != "" {
			positions = append(positions, p)
		}
	}
	return positions
}

// ProspectCandidate is a person returned by the paid provider. Candidates
// without an Email are enrichment-eligible and never surfaced to callers.
type ProspectCandidate struct {
	Email        string `json:"email"`
	EmailStatus  string `json:"email_status,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Company      string `json:"company"`
	Title        string `json:"title,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Industry     string `json:"industry,omitempty"`
	CompanySize  string `json:"company_size,omitempty"`
	SourceDomain string `json:"source_domain,omitempty"`

	// EnrichURL is the provider's sub-task link for resolving a missing email
	EnrichURL string `json:"-"`
}

// HasEmail reports whether the candidate can be surfaced
func (p ProspectCandidate) HasEmail() bool {
	return strings.Contains(strings.TrimSpace(p.Email), "@")
}

// SearchResult is returned to the caller of a paid search
type SearchResult struct {
	Total             int                 `json:"total"`
	Results           []ProspectCandidate `json:"results"`
	SearchesRemaining int                 `json:"searchesRemaining"`
}

// PublicFinderRequest is a public-web email lookup on behalf of a user
type PublicFinderRequest struct {
	UserID     string
	Email      string
	Tier       Tier
	Domain     string
	PageBudget int
}

// EmailType classifies a discovered public address
type EmailType string

const (
	EmailTypeGeneric  EmailType = "generic"
	EmailTypePersonal EmailType = "personal"
)

// PublicEmailResult is one address found on a public page. Email always
// ends with "@" + Domain.
type PublicEmailResult struct {
	Domain    string    `json:"domain"`
	Email     string    `json:"email"`
	Type      EmailType `json:"type"`
	SourceURL string    `json:"source_url"`
}

// PublicFinderResult is returned to the caller of a public email lookup
type PublicFinderResult struct {
	Domain            string              `json:"domain"`
	Total             int                 `json:"total"`
	Results           []PublicEmailResult `json:"results"`
	SearchesRemaining int                 `json:"searchesRemaining"`
}
