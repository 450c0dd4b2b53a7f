// Package scraper defines the scrape pipeline and its core types.
package scraper

import "time"

// Default labels applied when the caller omits them.
const (
	DefaultCountry = "Global"
	DefaultSource  = "Custom Scrape"
)

// ScrapeRequest is the immutable input for one scrape invocation.
type ScrapeRequest struct {
	URL     string `json:"url"`
	Country string `json:"country"`
	Source  string `json:"source"`
}

// WithDefaults returns a copy with empty optional fields filled in.
func (r ScrapeRequest) WithDefaults() ScrapeRequest {
	if r.Country == "" {
		r.Country = DefaultCountry
	}
	if r.Source == "" {
		r.Source = DefaultSource
	}
	return r
}

// Draft is a candidate record extracted from a container, before the
// pipeline assigns an ID, fingerprint, and timestamp.
type Draft struct {
	Title       string
	Description string
	SourceURL   string
}

// Opportunity is one extracted funding/grant record. ContentHash is the
// fingerprint of title|source_name|source_url and is the sole dedup key:
// two opportunities with equal hash are the same logical entity.
type Opportunity struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SourceURL   string    `json:"source_url"`
	SourceName  string    `json:"source_name"`
	Country     string    `json:"country"`
	ContentHash string    `json:"content_hash"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Screenshot is the visual snapshot of the rendered page. Base64 is always
// populated so callers can display the image even when the upload failed
// and URL is empty.
type Screenshot struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Base64      string `json:"base64"`
	StoragePath string `json:"-"`
	Bytes       []byte `json:"-"`
}

// ScrapeResult is the caller-facing envelope. Opportunities keeps
// extraction order and is not deduplicated; dedup only gates persistence.
type ScrapeResult struct {
	Success            bool          `json:"success"`
	URL                string        `json:"url"`
	Country            string        `json:"country"`
	Source             string        `json:"source"`
	OpportunitiesFound int           `json:"opportunities_found"`
	Opportunities      []Opportunity `json:"opportunities"`
	Screenshot         Screenshot    `json:"screenshot"`
}

// CompletionEvent is published after a real (non-mock) scrape finishes.
type CompletionEvent struct {
	URL                string    `json:"url"`
	Source             string    `json:"source"`
	Country            string    `json:"country"`
	OpportunitiesFound int       `json:"opportunities_found"`
	NewRecords         int       `json:"new_records"`
	ScreenshotURL      string    `json:"screenshot_url"`
	FinishedAt         time.Time `json:"finished_at"`
}
