package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.com", "acme.com"},
		{"  ACME.com ", "acme.com"},
		{"https://www.acme.com/contact?x=1", "acme.com"},
		{"http://acme.com:8080/", "acme.com"},
		{"www.sub.acme.co.uk", "sub.acme.co.uk"},
		{"jane@acme.com", "acme.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDomain_Invalid(t *testing.T) {
	for _, in := range []string{"", "localhost", "acme com.org", "https://", ".com"} {
		_, err := NormalizeDomain(in)
		assert.True(t, errors.Is(err, ErrBadRequest), "input %q", in)
	}
}

func TestSearchRequestValidate(t *testing.T) {
	base := SearchRequest{UserID: "u1", Tier: TierPro, RequestedCount: 5}

	domainReq := base
	domainReq.Mode = SearchModeDomain
	domainReq.Domain = "acme.com"
	assert.NoError(t, domainReq.Validate())

	both := domainReq
	both.Keyword = "affiliate"
	assert.ErrorIs(t, both.Validate(), ErrBadRequest)

	keywordReq := base
	keywordReq.Mode = SearchModeKeyword
	assert.ErrorIs(t, keywordReq.Validate(), ErrBadRequest)

	keywordReq.Keyword = "affiliate"
	assert.NoError(t, keywordReq.Validate())

	zero := keywordReq
	zero.RequestedCount = 0
	assert.ErrorIs(t, zero.Validate(), ErrBadRequest)
}

func TestSearchRequestPositions(t *testing.T) {
	req := SearchRequest{TitleHint: "CEO, Head of Partnerships ,,"}
	assert.Equal(t, []string{"CEO", "Head of Partnerships"}, req.Positions())
	assert.Nil(t, SearchRequest{}.Positions())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Pro ")
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)

	_, err = ParseTier("enterprise")
	assert.ErrorIs(t, err, ErrBadRequest)
}
