package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registerDomainResolve serves a company-domain-by-name task that completes
// on the second poll
func registerDomainResolve(f *fakeProvider, results []map[string]any) *[]string {
	var submitted []string
	f.mux.HandleFunc("POST /v2/company-domain-by-name/start", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Names []string `json:"names"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		submitted = body.Names
		writeJSON(w, map[string]any{"data": map[string]string{"task_hash": "dh-1"}})
	})
	f.mux.HandleFunc("GET /v2/company-domain-by-name/result", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("task_hash") != "dh-1" {
			http.Error(w, "unknown task", http.StatusNotFound)
			return
		}
		if f.poll("dh-1") < 2 {
			writeJSON(w, map[string]any{"status": "in_progress"})
			return
		}
		writeJSON(w, map[string]any{"status": "completed", "data": results})
	})
	return &submitted
}

// registerProspects serves prospect searches keyed by domain
func registerProspects(f *fakeProvider, byDomain map[string][]map[string]any) {
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"data": map[string]string{"task_hash": "ps-" + body.Domain}})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		hash := r.PathValue("hash")
		f.poll(hash)
		domain := hash[len("ps-"):]
		writeJSON(w, map[string]any{"status": "completed", "data": byDomain[domain]})
	})
}

// registerEnrichment serves an email sub-task that completes on poll
// completeOn with the given addresses
func registerEnrichment(f *fakeProvider, id string, completeOn int, emails []map[string]string) string {
	f.mux.HandleFunc("POST /v2/domain-search/prospects/search-emails/start/"+id, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"meta": map[string]string{"task_hash": "eh-" + id}})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/search-emails/result/eh-"+id, func(w http.ResponseWriter, r *http.Request) {
		if f.poll("eh-"+id) < completeOn {
			writeJSON(w, map[string]any{"status": "in_progress"})
			return
		}
		writeJSON(w, map[string]any{"status": "completed", "data": map[string]any{"emails": emails}})
	})
	return f.server.URL + "/v2/domain-search/prospects/search-emails/start/" + id
}

func newOrchestrator(f *fakeProvider) *TaskOrchestrator {
	client := f.client()
	resolver := NewDomainResolver(client, ImmediatePolicy(4), nil, discardLogger())
	return NewTaskOrchestrator(client, resolver, testOrchestratorConfig(), discardLogger())
}

func TestDomainResolver_CandidateNames(t *testing.T) {
	r := NewDomainResolver(nil, ImmediatePolicy(1), nil, discardLogger())

	names := r.CandidateNames("affiliate")
	assert.Equal(t, []string{"affiliate", "Affiliate", "Impact", "CJ", "Awin", "ShareASale", "Rakuten", "PartnerStack"}, names)

	assert.Equal(t, []string{"Acme"}, r.CandidateNames("  Acme "))
	assert.Equal(t, []string{"email marketing", "Email Marketing", "Mailchimp", "Klaviyo", "Brevo", "ActiveCampaign"},
		r.CandidateNames("email marketing"))
	assert.Nil(t, r.CandidateNames(" "))
}

func TestDomainResolver_ResolveDomains(t *testing.T) {
	f := newFakeProvider(t)
	submitted := registerDomainResolve(f, []map[string]any{
		{"name": "Impact", "result": map[string]string{"domain": "https://www.Impact.com/"}},
		{"name": "CJ", "result": map[string]string{"domain": "cj.com"}},
		{"name": "Awin", "result": map[string]string{"domain": "impact.com"}},
		{"name": "affiliate", "result": map[string]string{"domain": ""}},
		{"name": "Rakuten", "result": map[string]string{"domain": "localhost"}},
	})
	r := NewDomainResolver(f.client(), ImmediatePolicy(4), nil, discardLogger())

	domains, err := r.ResolveDomains(context.Background(), "affiliate")
	require.NoError(t, err)

	assert.Equal(t, []string{"impact.com", "cj.com"}, domains)
	assert.Contains(t, *submitted, "Impact")
	assert.Equal(t, 2, f.pollCount("dh-1"))
}

func TestDomainResolver_Timeout(t *testing.T) {
	f := newFakeProvider(t)
	registerDomainResolve(f, nil)
	r := NewDomainResolver(f.client(), ImmediatePolicy(1), nil, discardLogger())

	_, err := r.ResolveDomains(context.Background(), "affiliate")
	assert.ErrorIs(t, err, models.ErrTaskTimeout)
}

func TestSearchKeyword_FallsBackThroughHintDomains(t *testing.T) {
	f := newFakeProvider(t)
	registerDomainResolve(f, []map[string]any{
		{"name": "Impact", "result": map[string]string{"domain": "impact.com"}},
		{"name": "CJ", "result": map[string]string{"domain": "cj.com"}},
		{"name": "Awin", "result": map[string]string{"domain": "awin.com"}},
	})
	registerProspects(f, map[string][]map[string]any{
		"impact.com": {},
		"cj.com": {
			{"first_name": "Ana", "last_name": "Lopez", "position": "CEO",
				"emails": []map[string]string{{"email": "ana@cj.com", "smtp_status": "valid"}}},
			{"first_name": "Ben", "last_name": "Ng", "position": "CTO",
				"emails": []map[string]string{{"email": "ben@cj.com", "smtp_status": "unknown"}}},
		},
		"awin.com": {
			{"first_name": "Cy", "emails": []map[string]string{{"email": "cy@awin.com", "smtp_status": "valid"}}},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchKeyword(context.Background(), "affiliate", nil, 2)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "ana@cj.com", found[0].Email)
	assert.Equal(t, "valid", found[0].EmailStatus)
	assert.Equal(t, "cj.com", found[0].SourceDomain)
	assert.Equal(t, "ben@cj.com", found[1].Email)

	assert.Equal(t, 1, f.pollCount("ps-impact.com"))
	assert.Equal(t, 1, f.pollCount("ps-cj.com"))
	assert.Equal(t, 0, f.pollCount("ps-awin.com"))
}

func TestSearchKeyword_AccumulatesAcrossDomains(t *testing.T) {
	f := newFakeProvider(t)
	registerDomainResolve(f, []map[string]any{
		{"name": "CJ", "result": map[string]string{"domain": "cj.com"}},
		{"name": "Awin", "result": map[string]string{"domain": "awin.com"}},
	})
	registerProspects(f, map[string][]map[string]any{
		"cj.com": {
			{"first_name": "Ana", "emails": []map[string]string{{"email": "ana@cj.com", "smtp_status": "valid"}}},
		},
		"awin.com": {
			{"first_name": "Cy", "emails": []map[string]string{{"email": "cy@awin.com", "smtp_status": "valid"}}},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchKeyword(context.Background(), "affiliate", nil, 5)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "cy@awin.com", found[1].Email)
}

func TestSearchKeyword_NothingResolves(t *testing.T) {
	f := newFakeProvider(t)
	registerDomainResolve(f, []map[string]any{})
	o := newOrchestrator(f)

	found, err := o.SearchKeyword(context.Background(), "zzqx", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchKeyword_DomainLikeKeywordSearchedDirectly(t *testing.T) {
	f := newFakeProvider(t)
	registerProspects(f, map[string][]map[string]any{
		"acme.com": {
			{"first_name": "Dee", "emails": []map[string]string{{"email": "dee@acme.com", "smtp_status": "valid"}}},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchKeyword(context.Background(), "acme.com", nil, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Empty(t, f.recorded("POST /v2/company-domain-by-name"))
}

func TestSearchDomain_EnrichmentPrefersValidEmail(t *testing.T) {
	f := newFakeProvider(t)
	enrichURL := registerEnrichment(f, "p2", 3, []map[string]string{
		{"email": "e.fox@acme.com", "smtp_status": "unknown"},
		{"email": "eve.fox@acme.com", "smtp_status": "valid"},
	})
	registerProspects(f, map[string][]map[string]any{
		"acme.com": {
			{"first_name": "Dee", "emails": []map[string]string{{"email": "dee@acme.com", "smtp_status": "valid"}}},
			{"first_name": "Eve", "last_name": "Fox", "source_page": "https://www.linkedin.com/in/evefox", "search_emails_start": enrichURL},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "https://www.acme.com", []string{"CEO"}, 1, 5)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "eve.fox@acme.com", found[1].Email)
	assert.Equal(t, "valid", found[1].EmailStatus)
	assert.Equal(t, "https://www.linkedin.com/in/evefox", found[1].LinkedInURL)
	assert.Equal(t, 3, f.pollCount("eh-p2"))
}

func TestSearchDomain_EnrichmentTimeoutDropsCandidate(t *testing.T) {
	f := newFakeProvider(t)
	enrichURL := registerEnrichment(f, "slow", 10, nil)
	registerProspects(f, map[string][]map[string]any{
		"acme.com": {
			{"first_name": "Dee", "emails": []map[string]string{{"email": "dee@acme.com", "smtp_status": "valid"}}},
			{"first_name": "Slow", "search_emails_start": enrichURL},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "dee@acme.com", found[0].Email)
	assert.Equal(t, 3, f.pollCount("eh-slow"))
}

func TestSearchDomain_SkipsEnrichmentWhenMaxReached(t *testing.T) {
	f := newFakeProvider(t)
	enrichURL := registerEnrichment(f, "unused", 1, []map[string]string{{"email": "x@acme.com", "smtp_status": "valid"}})
	registerProspects(f, map[string][]map[string]any{
		"acme.com": {
			{"first_name": "Dee", "emails": []map[string]string{{"email": "dee@acme.com", "smtp_status": "valid"}}},
			{"first_name": "Extra", "search_emails_start": enrichURL},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, 0, f.pollCount("eh-unused"))
}

func TestSearchDomain_FallsBackToFormPayload(t *testing.T) {
	f := newFakeProvider(t)
	var contentTypes []string
	var positions []string
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		contentTypes = append(contentTypes, r.Header.Get("Content-Type"))
		if r.Header.Get("Content-Type") == "application/json" {
			http.Error(w, "unsupported", http.StatusUnsupportedMediaType)
			return
		}
		_ = r.ParseForm()
		positions = r.PostForm["positions[]"]
		if r.PostForm.Get("domain") != "acme.com" || r.PostForm.Get("page") != "1" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"task_hash": "ps-acme.com"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "completed", "data": []map[string]any{
			{"first_name": "Dee", "email": "dee@acme.com", "smtp_status": "valid"},
		}})
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", []string{"CEO", "Founder"}, 1, 5)
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, []string{"application/json", "application/x-www-form-urlencoded"}, contentTypes)
	assert.Equal(t, []string{"CEO", "Founder"}, positions)
}

func TestSearchDomain_MalformedResult(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]string{"task_hash": "ps-acme.com"}})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "completed", "data": "not-a-list"})
	})
	o := newOrchestrator(f)

	_, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
	assert.True(t, models.IsCandidateFailure(err))
}

func TestSearchDomain_NoTaskHash(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"success": true})
	})
	o := newOrchestrator(f)

	_, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestChooseEmail(t *testing.T) {
	emails := []emailRecord{
		{Email: "a@acme.com", SMTPStatus: "not_valid"},
		{Email: "b@acme.com", SMTPStatus: "unknown"},
		{Email: "c@acme.com", SMTPStatus: "Valid"},
	}

	email, status := chooseEmail(emails, []string{"valid", "unknown"})
	assert.Equal(t, "c@acme.com", email)
	assert.Equal(t, "valid", status)

	email, _ = chooseEmail(emails, []string{"unknown", "valid"})
	assert.Equal(t, "b@acme.com", email)

	email, _ = chooseEmail(emails[:1], []string{"valid", "unknown"})
	assert.Empty(t, email)
}

func TestParseTaskHash(t *testing.T) {
	for _, body := range []string{
		`{"task_hash":"h"}`,
		`{"data":{"task_hash":"h"}}`,
		`{"meta":{"task_hash":"h"},"data":[]}`,
	} {
		hash, err := parseTaskHash([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, "h", hash)
	}

	_, err := parseTaskHash([]byte(`<html>`))
	assert.ErrorIs(t, err, models.ErrMalformedResponse)
}

func TestSearchDomain_TopLevelProspectsResult(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"task_hash": "ps-acme.com"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "completed", "prospects": []map[string]any{
			{"first_name": "Dee", "email": "dee@acme.com", "smtp_status": "valid"},
		}})
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "dee@acme.com", found[0].Email)
	assert.Equal(t, "valid", found[0].EmailStatus)
}

func TestSearchDomain_ResultWithoutStatus(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"task_hash": "ps-acme.com"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		if f.poll("ps-acme.com") < 2 {
			writeJSON(w, map[string]any{})
			return
		}
		writeJSON(w, map[string]any{"prospects": []map[string]any{
			{"first_name": "Dee", "email": "dee@acme.com", "smtp_status": "valid"},
		}})
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2, f.pollCount("ps-acme.com"))
}

func TestSearchDomain_NestedDataProspects(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"task_hash": "ps-acme.com"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"status": "completed", "data": map[string]any{"prospects": []map[string]any{
			{"first_name": "Dee", "email": "dee@acme.com", "smtp_status": "unknown"},
		}}})
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "unknown", found[0].EmailStatus)
}

func TestSearchDomain_EnrichmentResultWithoutStatus(t *testing.T) {
	f := newFakeProvider(t)
	f.mux.HandleFunc("POST /v2/domain-search/prospects/search-emails/start/p9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"task_hash": "eh-p9"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/search-emails/result/eh-p9", func(w http.ResponseWriter, r *http.Request) {
		if f.poll("eh-p9") < 2 {
			writeJSON(w, map[string]any{"data": map[string]any{}})
			return
		}
		writeJSON(w, map[string]any{"data": map[string]any{"emails": []map[string]string{
			{"email": "eve@acme.com", "smtp_status": "valid"},
		}}})
	})
	f.mux.HandleFunc("POST /v2/domain-search/prospects/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"task_hash": "ps-acme.com"})
	})
	f.mux.HandleFunc("GET /v2/domain-search/prospects/result/{hash}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"prospects": []map[string]any{
			{"first_name": "Eve", "search_emails_start": f.server.URL + "/v2/domain-search/prospects/search-emails/start/p9"},
		}})
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "eve@acme.com", found[0].Email)
	assert.Equal(t, 2, f.pollCount("eh-p9"))
}

func TestSearchDomain_AcceptsBestAvailableEmail(t *testing.T) {
	f := newFakeProvider(t)
	enrichURL := registerEnrichment(f, "ca", 1, []map[string]string{
		{"email": "x@acme.com", "smtp_status": "invalid"},
		{"email": "gus@acme.com", "smtp_status": "catch_all"},
	})
	registerProspects(f, map[string][]map[string]any{
		"acme.com": {
			{"first_name": "Fay", "email": "fay@acme.com", "smtp_status": "catch_all"},
			{"first_name": "Hal", "email": "hal@acme.com", "smtp_status": "invalid"},
			{"first_name": "Gus", "search_emails_start": enrichURL},
		},
	})
	o := newOrchestrator(f)

	found, err := o.SearchDomain(context.Background(), "acme.com", nil, 1, 5)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "fay@acme.com", found[0].Email)
	assert.Equal(t, "catch_all", found[0].EmailStatus)
	assert.Equal(t, "gus@acme.com", found[1].Email)
}

func TestBestAvailable(t *testing.T) {
	email, status := bestAvailable([]emailRecord{
		{Email: "bad@acme.com", SMTPStatus: "not_valid"},
		{Email: "broken", SMTPStatus: "unknown"},
		{Email: "ok@acme.com", SMTPStatus: "Catch_All"},
	})
	assert.Equal(t, "ok@acme.com", email)
	assert.Equal(t, "catch_all", status)

	email, _ = bestAvailable([]emailRecord{{Email: "bad@acme.com", SMTPStatus: "invalid"}})
	assert.Empty(t, email)
}
