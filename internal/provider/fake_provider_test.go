package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeProvider is an in-process stand-in for the people-search API
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server
	mux    *http.ServeMux

	mu           sync.Mutex
	tokenCalls   int
	issued       []string
	acceptTokens map[string]bool
	calls        []string
	polls        map[string]int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		t:            t,
		mux:          http.NewServeMux(),
		acceptTokens: map[string]bool{},
		polls:        map[string]int{},
	}
	f.mux.HandleFunc("POST /oauth/token", f.handleToken)
	f.server = httptest.NewServer(f.authenticated(f.mux))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	if r.PostForm.Get("grant_type") != "client_credentials" {
		http.Error(w, "bad grant", http.StatusBadRequest)
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != "client" || secret != "secret" {
		http.Error(w, "invalid client", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	f.tokenCalls++
	token := fmt.Sprintf("token-%d", f.tokenCalls)
	f.issued = append(f.issued, token)
	f.acceptTokens[token] = true
	f.mu.Unlock()

	writeJSON(w, map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": 3600})
}

// authenticated rejects API calls whose bearer token was not issued or accepted
func (f *fakeProvider) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/oauth/") {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		ok := f.acceptTokens[token]
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeProvider) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptTokens[token] = false
}

// poll counts a poll of key and returns the running total
func (f *fakeProvider) poll(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[key]++
	return f.polls[key]
}

func (f *fakeProvider) pollCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[key]
}

func (f *fakeProvider) recorded(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeProvider) tokenManager() *TokenManager {
	return NewTokenManager(TokenConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		Strategies:   StrategiesFor([]string{f.server.URL + "/oauth/token"}),
	}, f.server.Client(), discardLogger())
}

func (f *fakeProvider) client() *Client {
	return NewClient(f.server.URL, f.server.Client(), f.tokenManager(), "prospector-test", discardLogger())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		SearchPolicy:        ImmediatePolicy(5),
		EnrichPolicy:        ImmediatePolicy(3),
		EmailPreference:     []string{"valid", "unknown"},
		EnrichConcurrency:   2,
		MaxCandidateDomains: 3,
	}
}
