package scraper

import (
	"context"
	"time"
)

// RenderedPage is the output of one browser navigation.
type RenderedPage struct {
	HTML       string
	Screenshot []byte
}

// Renderer produces rendered HTML plus a viewport screenshot for a URL.
type Renderer interface {
	Render(ctx context.Context, url string) (RenderedPage, error)
	Close(ctx context.Context) error
}

// OpportunityStore is the durable keyed store used for deduplication.
type OpportunityStore interface {
	FindByHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, opp Opportunity) error
	Close()
}

// BlobStore writes screenshot bytes and resolves their public URL.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) error
	PublicURL(path string) string
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
