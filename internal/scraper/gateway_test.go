package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grantscout/opportunity-scraper/internal/hash/rolling"
)

func testOpportunities(n int) []Opportunity {
	opps := make([]Opportunity, 0, n)
	for i := 0; i < n; i++ {
		opps = append(opps, Opportunity{
			ID:         string(rune('a' + i)),
			Title:      "Grant " + string(rune('A'+i)),
			SourceName: "Test",
			SourceURL:  "https://example.org/grants",
			Country:    "Kenya",
			ScrapedAt:  time.Unix(1000, 0).UTC(),
		})
	}
	return opps
}

func TestGatewayPersistFillsHashesAndInserts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	blobs := newFakeBlobs()
	gw := NewGateway(store, blobs, GatewayConfig{BlobPrefix: "screenshots"}, zap.NewNop())

	opps := testOpportunities(3)
	shot := Screenshot{ID: "shot-1", Bytes: []byte("png-bytes")}

	inserted, err := gw.Persist(context.Background(), opps, &shot)
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	for _, opp := range opps {
		want := rolling.Hash(opp.Title + "|" + opp.SourceName + "|" + opp.SourceURL)
		require.Equal(t, want, opp.ContentHash)
	}

	require.Equal(t, "screenshots/shot-1.png", shot.StoragePath)
	require.Equal(t, "https://blobs.test/screenshots/shot-1.png", shot.URL)
	_, ok := blobs.data[shot.StoragePath]
	require.True(t, ok)
}

// TestGatewayPersistIdempotent re-persists the same content: the second run
// inserts nothing while the caller still gets the full extracted set.
func TestGatewayPersistIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gw := NewGateway(store, newFakeBlobs(), GatewayConfig{}, zap.NewNop())

	first := testOpportunities(4)
	shot := Screenshot{ID: "s1", Bytes: []byte("x")}
	inserted, err := gw.Persist(context.Background(), first, &shot)
	require.NoError(t, err)
	require.Equal(t, 4, inserted)

	second := testOpportunities(4)
	shot2 := Screenshot{ID: "s2", Bytes: []byte("x")}
	inserted, err = gw.Persist(context.Background(), second, &shot2)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
	require.Equal(t, 4, store.insertCount())
	require.Len(t, second, 4)
}

func TestGatewayPersistSkipsPerRecordFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gw := NewGateway(store, newFakeBlobs(), GatewayConfig{}, zap.NewNop())

	opps := testOpportunities(3)
	// Precompute the hash of the first record and make its lookup fail.
	badHash := Fingerprint(opps[0].Title, opps[0].SourceName, opps[0].SourceURL)
	store.failHash[badHash] = true

	shot := Screenshot{ID: "s", Bytes: []byte("x")}
	inserted, err := gw.Persist(context.Background(), opps, &shot)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
}

func TestGatewayPersistAllLookupsFailingIsUnavailable(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failAll = true
	gw := NewGateway(store, newFakeBlobs(), GatewayConfig{}, zap.NewNop())

	shot := Screenshot{ID: "s", Bytes: []byte("x")}
	_, err := gw.Persist(context.Background(), testOpportunities(2), &shot)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestGatewayUploadFailureLeavesURLEmpty(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobs()
	blobs.fail = true
	gw := NewGateway(newFakeStore(), blobs, GatewayConfig{BlobPrefix: "shots"}, zap.NewNop())

	shot := Screenshot{ID: "s9", Bytes: []byte("png")}
	inserted, err := gw.Persist(context.Background(), testOpportunities(1), &shot)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Empty(t, shot.URL)
	require.NotEmpty(t, shot.Bytes)
}

func TestGatewayPersistNoOpportunities(t *testing.T) {
	t.Parallel()

	gw := NewGateway(newFakeStore(), newFakeBlobs(), GatewayConfig{}, zap.NewNop())
	shot := Screenshot{ID: "only-shot", Bytes: []byte("png")}
	inserted, err := gw.Persist(context.Background(), nil, &shot)
	require.NoError(t, err)
	require.Zero(t, inserted)
	require.NotEmpty(t, shot.URL)
}

func TestFingerprintMatchesRollingHash(t *testing.T) {
	t.Parallel()

	require.Equal(t, rolling.Hash("A|B|C"), Fingerprint("A", "B", "C"))
	require.Equal(t, "3cd5cce", Fingerprint("A", "B", "C"))
}
