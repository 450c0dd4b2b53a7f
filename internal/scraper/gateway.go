package scraper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grantscout/opportunity-scraper/internal/hash/rolling"
	"github.com/grantscout/opportunity-scraper/internal/metrics"
)

// ErrStoreUnavailable reports that every persistence lookup failed, which
// the pipeline treats as the store being down rather than per-record noise.
var ErrStoreUnavailable = errors.New("opportunity store unavailable")

// persistConcurrency caps parallel existence-check/insert pairs. The checks
// are independent keyed operations; the screenshot upload stays serialized.
const persistConcurrency = 4

// GatewayConfig controls blob placement.
type GatewayConfig struct {
	BlobPrefix  string
	ContentType string
}

// Gateway fingerprints extracted records, inserts only unseen ones, and
// uploads the screenshot, resolving its public URL. Idempotent across runs
// on identical page content: re-scraping inserts nothing new, while the
// response still carries the full freshly-extracted set.
type Gateway struct {
	store  OpportunityStore
	blobs  BlobStore
	cfg    GatewayConfig
	logger *zap.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(store OpportunityStore, blobs BlobStore, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.ContentType == "" {
		cfg.ContentType = "image/png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, blobs: blobs, cfg: cfg, logger: logger}
}

// Persist fills in content hashes, inserts unseen records, and uploads the
// screenshot. Per-record and upload failures are logged and skipped; the
// returned error is reserved for the store being wholly unreachable.
func (g *Gateway) Persist(ctx context.Context, opportunities []Opportunity, shot *Screenshot) (int, error) {
	for i := range opportunities {
		opportunities[i].ContentHash = Fingerprint(
			opportunities[i].Title,
			opportunities[i].SourceName,
			opportunities[i].SourceURL,
		)
	}

	var inserted, lookupFailures atomic.Int64
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(persistConcurrency)
	for i := range opportunities {
		opp := opportunities[i]
		grp.Go(func() error {
			exists, err := g.store.FindByHash(grpCtx, opp.ContentHash)
			if err != nil {
				lookupFailures.Add(1)
				metrics.IncPersistenceError("lookup")
				g.logger.Warn("dedup lookup failed",
					zap.String("hash", opp.ContentHash), zap.Error(err))
				return nil
			}
			if exists {
				g.logger.Debug("duplicate skipped", zap.String("hash", opp.ContentHash))
				return nil
			}
			if err := g.store.Insert(grpCtx, opp); err != nil {
				metrics.IncPersistenceError("insert")
				g.logger.Warn("insert failed",
					zap.String("hash", opp.ContentHash), zap.Error(err))
				return nil
			}
			inserted.Add(1)
			return nil
		})
	}
	// Workers never return errors; Wait only propagates ctx cancellation.
	if err := grp.Wait(); err != nil {
		return int(inserted.Load()), fmt.Errorf("persist group: %w", err)
	}
	if n := len(opportunities); n > 0 && int(lookupFailures.Load()) == n {
		return 0, ErrStoreUnavailable
	}

	g.uploadScreenshot(ctx, shot)
	return int(inserted.Load()), nil
}

// uploadScreenshot is best-effort: on any failure the screenshot keeps its
// bytes and an empty URL so the caller can still display the image inline.
func (g *Gateway) uploadScreenshot(ctx context.Context, shot *Screenshot) {
	if shot == nil || len(shot.Bytes) == 0 {
		return
	}
	shot.StoragePath = path.Join(g.cfg.BlobPrefix, shot.ID+".png")
	if err := g.blobs.Put(ctx, shot.StoragePath, g.cfg.ContentType, shot.Bytes); err != nil {
		metrics.IncPersistenceError("upload")
		g.logger.Warn("screenshot upload failed",
			zap.String("path", shot.StoragePath), zap.Error(err))
		return
	}
	shot.URL = g.blobs.PublicURL(shot.StoragePath)
}

// Fingerprint derives the dedup key from the title, source label, and
// resolved link. Stable for identical triples across runs and runtimes.
func Fingerprint(title, sourceName, sourceURL string) string {
	return rolling.Hash(title + "|" + sourceName + "|" + sourceURL)
}
