package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/grantscout/opportunity-scraper/internal/scraper"
)

// OpportunityStore keeps opportunities keyed by content hash.
type OpportunityStore struct {
	mu      sync.RWMutex
	byHash  map[string]scraper.Opportunity
	inserts int
}

// NewOpportunityStore creates an empty in-memory store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{byHash: make(map[string]scraper.Opportunity)}
}

// FindByHash reports whether a record with the hash already exists.
func (s *OpportunityStore) FindByHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[hash]
	return ok, nil
}

// Insert stores the opportunity under its content hash.
func (s *OpportunityStore) Insert(_ context.Context, opp scraper.Opportunity) error {
	if opp.ContentHash == "" {
		return fmt.Errorf("content hash is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[opp.ContentHash] = opp
	s.inserts++
	return nil
}

// Close is a no-op for the in-memory store.
func (s *OpportunityStore) Close() {}

// Inserts returns the number of successful inserts, for tests.
func (s *OpportunityStore) Inserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}
