package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteSuccess(w, 200, map[string]int{"total": 2, "searchesRemaining": 8})

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "error")
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(8), data["searchesRemaining"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "test_error", body["error"])
	assert.Equal(t, "Test message", body["message"])
	assert.NotContains(t, body, "data")
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w *httptest.ResponseRecorder)
		status int
		code   string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "x") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "x") }, 401, "unauthorized"},
		{"quota", func(w *httptest.ResponseRecorder) { pkghttp.WriteQuotaExceeded(w, "x") }, 402, "quota_exceeded"},
		{"feature", func(w *httptest.ResponseRecorder) { pkghttp.WriteFeatureDisabled(w, "x") }, 403, "feature_disabled"},
		{"rate", func(w *httptest.ResponseRecorder) { pkghttp.WriteTooManyRequests(w, "x") }, 429, "rate_limit_exceeded"},
		{"search", func(w *httptest.ResponseRecorder) { pkghttp.WriteSearchFailed(w) }, 502, "search_failed"},
		{"internal", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "x") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeEnvelope(t, w)["error"])
		})
	}
}
