package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/prospector/internal/auth"
	"github.com/BradenHooton/prospector/internal/models"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, email string, tier models.Tier) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Tier:   tier,
		Type:   "access",
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertSuccessResponse checks the status and decodes the envelope's data into target
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if !assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response JSON") {
		return
	}
	assert.True(t, env.Success)
	if target != nil {
		assert.NoError(t, json.Unmarshal(env.Data, target), "Failed to decode response data")
	}
}

// AssertErrorResponse checks that response is a valid error envelope
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.Envelope
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockSearchService implements SearchService for testing
type MockSearchService struct {
	SearchProspectsFunc  func(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	FindPublicEmailsFunc func(ctx context.Context, req models.PublicFinderRequest) (*models.PublicFinderResult, error)
	UsageFunc            func(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error)
}

func (m *MockSearchService) SearchProspects(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	if m.SearchProspectsFunc == nil {
		return nil, models.ErrFeatureDisabled
	}
	return m.SearchProspectsFunc(ctx, req)
}

func (m *MockSearchService) FindPublicEmails(ctx context.Context, req models.PublicFinderRequest) (*models.PublicFinderResult, error) {
	if m.FindPublicEmailsFunc == nil {
		return nil, models.ErrFeatureDisabled
	}
	return m.FindPublicEmailsFunc(ctx, req)
}

func (m *MockSearchService) Usage(ctx context.Context, userID string, tier models.Tier) (*models.UsageSummary, error) {
	if m.UsageFunc == nil {
		return &models.UsageSummary{}, nil
	}
	return m.UsageFunc(ctx, userID, tier)
}

// MockOutreachService implements OutreachService for testing
type MockOutreachService struct {
	GenerateFunc func(ctx context.Context, req models.OutreachRequest) (*models.OutreachMessage, error)
}

func (m *MockOutreachService) Generate(ctx context.Context, req models.OutreachRequest) (*models.OutreachMessage, error) {
	if m.GenerateFunc == nil {
		return nil, models.ErrFeatureDisabled
	}
	return m.GenerateFunc(ctx, req)
}
