package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errTest = errors.New("test error")

// fakeStore is an in-memory OpportunityStore with switchable failure modes.
type fakeStore struct {
	mu       sync.Mutex
	byHash   map[string]Opportunity
	inserts  int
	failAll  bool
	failHash map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byHash:   make(map[string]Opportunity),
		failHash: make(map[string]bool),
	}
}

func (s *fakeStore) FindByHash(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll || s.failHash[hash] {
		return false, errors.New("store down")
	}
	_, ok := s.byHash[hash]
	return ok, nil
}

func (s *fakeStore) Insert(_ context.Context, opp Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("store down")
	}
	s.byHash[opp.ContentHash] = opp
	s.inserts++
	return nil
}

func (s *fakeStore) Close() {}

func (s *fakeStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// fakeBlobs records uploads and can be told to fail.
type fakeBlobs struct {
	mu    sync.Mutex
	data  map[string][]byte
	fail  bool
	calls int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, path string, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail {
		return errors.New("upload failed")
	}
	b.data[path] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBlobs) PublicURL(path string) string {
	return "https://blobs.test/" + path
}

// fakeRenderer serves canned HTML and screenshot bytes.
type fakeRenderer struct {
	html string
	shot []byte
	err  error
}

func (r *fakeRenderer) Render(_ context.Context, _ string) (RenderedPage, error) {
	if r.err != nil {
		return RenderedPage{}, r.err
	}
	return RenderedPage{HTML: r.html, Screenshot: r.shot}, nil
}

func (r *fakeRenderer) Close(_ context.Context) error { return nil }

// fakeClock returns a fixed time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// fakeIDGen hands out sequential IDs.
type fakeIDGen struct {
	mu   sync.Mutex
	next int
	err  error
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

// fakePublisher records completion events.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}
