package scraper

import (
	"encoding/base64"
	"fmt"
	"math/rand/v2"

	"github.com/grantscout/opportunity-scraper/internal/hash/rolling"
)

// PlaceholderPNGBase64 is a fixed 1x1 transparent PNG used as the
// screenshot payload on the mock path.
const PlaceholderPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var mockTitles = []string{
	"Community Development Grant",
	"Small Business Innovation Fund",
	"Youth Empowerment Opportunity",
	"Agricultural Research Grant",
	"Climate Resilience Fund",
}

// MockGenerator synthesizes dependency-free scrape results used whenever
// rendering or storage is unavailable, so callers never see a hard failure
// for infrastructure reasons.
type MockGenerator struct {
	idGen IDGenerator
	clock Clock
}

// NewMockGenerator builds a generator using the shared id/clock adapters.
func NewMockGenerator(idGen IDGenerator, clock Clock) *MockGenerator {
	return &MockGenerator{idGen: idGen, clock: clock}
}

// Generate produces a structurally valid result with 1-5 synthetic records
// labeled with the request's source and country. Hashes are computed with
// the real fingerprint algorithm so downstream consumers cannot tell the
// format apart from real records.
func (g *MockGenerator) Generate(req ScrapeRequest) ScrapeResult {
	req = req.WithDefaults()
	count := rand.IntN(len(mockTitles)) + 1

	opportunities := make([]Opportunity, 0, count)
	for i := 0; i < count; i++ {
		title := mockTitles[i]
		opportunities = append(opportunities, Opportunity{
			ID:    g.newID(i),
			Title: title,
			Description: fmt.Sprintf(
				"Sample %s funding opportunity for %s, generated while live scraping was unavailable.",
				req.Country, title,
			),
			SourceURL:   req.URL,
			SourceName:  req.Source,
			Country:     req.Country,
			ContentHash: rolling.Hash(title + "|" + req.Source + "|" + req.URL),
			ScrapedAt:   g.clock.Now(),
		})
	}

	return ScrapeResult{
		Success:            true,
		URL:                req.URL,
		Country:            req.Country,
		Source:             req.Source,
		OpportunitiesFound: len(opportunities),
		Opportunities:      opportunities,
		Screenshot:         g.placeholderScreenshot(),
	}
}

// Failure reports the generator's own internal-failure path: success=false
// with an empty set, still shaped like a normal result and never an error.
// The HTTP layer intentionally serves this with status 200.
func (g *MockGenerator) Failure(req ScrapeRequest) ScrapeResult {
	req = req.WithDefaults()
	return ScrapeResult{
		Success:       false,
		URL:           req.URL,
		Country:       req.Country,
		Source:        req.Source,
		Opportunities: []Opportunity{},
		Screenshot:    g.placeholderScreenshot(),
	}
}

func (g *MockGenerator) placeholderScreenshot() Screenshot {
	bytes, _ := base64.StdEncoding.DecodeString(PlaceholderPNGBase64)
	return Screenshot{
		ID:     g.newID(0),
		Base64: PlaceholderPNGBase64,
		Bytes:  bytes,
	}
}

func (g *MockGenerator) newID(i int) string {
	if g.idGen != nil {
		if id, err := g.idGen.NewID(); err == nil {
			return id
		}
	}
	return fmt.Sprintf("mock-%d", i)
}
