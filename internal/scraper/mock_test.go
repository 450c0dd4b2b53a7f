package scraper

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMock() *MockGenerator {
	return NewMockGenerator(&fakeIDGen{}, &fakeClock{now: time.Unix(5000, 0).UTC()})
}

// TestMockGenerateFallbackCorrectness checks the availability contract:
// a structurally valid success with 1-5 labeled records and a screenshot.
func TestMockGenerateFallbackCorrectness(t *testing.T) {
	t.Parallel()

	req := ScrapeRequest{URL: "https://x.test", Country: "Kenya", Source: "Test"}
	result := newTestMock().Generate(req)

	require.True(t, result.Success)
	require.Equal(t, "https://x.test", result.URL)
	require.Equal(t, "Kenya", result.Country)
	require.Equal(t, "Test", result.Source)
	require.GreaterOrEqual(t, result.OpportunitiesFound, 1)
	require.LessOrEqual(t, result.OpportunitiesFound, 5)
	require.Len(t, result.Opportunities, result.OpportunitiesFound)
	for _, opp := range result.Opportunities {
		require.Equal(t, "Test", opp.SourceName)
		require.Equal(t, "Kenya", opp.Country)
		require.NotEmpty(t, opp.ID)
		require.NotEmpty(t, opp.Title)
		require.NotEmpty(t, opp.ContentHash)
		require.Equal(t, "https://x.test", opp.SourceURL)
	}
	require.NotEmpty(t, result.Screenshot.Base64)
	require.NotEmpty(t, result.Screenshot.ID)
}

// TestMockHashesMatchRealAlgorithm ensures downstream consumers cannot tell
// mock fingerprints apart from real ones.
func TestMockHashesMatchRealAlgorithm(t *testing.T) {
	t.Parallel()

	req := ScrapeRequest{URL: "https://x.test", Source: "Test"}
	result := newTestMock().Generate(req)
	for _, opp := range result.Opportunities {
		require.Equal(t, Fingerprint(opp.Title, opp.SourceName, opp.SourceURL), opp.ContentHash)
	}
}

func TestMockGenerateAppliesDefaults(t *testing.T) {
	t.Parallel()

	result := newTestMock().Generate(ScrapeRequest{URL: "https://x.test"})
	require.Equal(t, DefaultCountry, result.Country)
	require.Equal(t, DefaultSource, result.Source)
}

func TestMockPlaceholderIsValidPNG(t *testing.T) {
	t.Parallel()

	raw, err := base64.StdEncoding.DecodeString(PlaceholderPNGBase64)
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, raw[:8])
}

func TestMockFailureShape(t *testing.T) {
	t.Parallel()

	result := newTestMock().Failure(ScrapeRequest{URL: "https://x.test", Country: "Kenya"})
	require.False(t, result.Success)
	require.Empty(t, result.Opportunities)
	require.NotNil(t, result.Opportunities)
	require.Equal(t, "Kenya", result.Country)
	require.NotEmpty(t, result.Screenshot.Base64)
}

func TestMockSurvivesIDGeneratorFailure(t *testing.T) {
	t.Parallel()

	gen := NewMockGenerator(
		&fakeIDGen{err: errTest},
		&fakeClock{now: time.Unix(1, 0)},
	)
	result := gen.Generate(ScrapeRequest{URL: "https://x.test"})
	require.True(t, result.Success)
	for _, opp := range result.Opportunities {
		require.NotEmpty(t, opp.ID)
	}
}
