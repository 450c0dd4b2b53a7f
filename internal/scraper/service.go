package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantscout/opportunity-scraper/internal/metrics"
)

// ErrMissingURL is the only client error the pipeline produces. Everything
// else degrades to a mock success: the contract prioritizes availability
// over strict correctness whenever the failure is infrastructure's fault.
var ErrMissingURL = errors.New("URL is required")

// Service orchestrates one scrape invocation: validate, render, extract,
// persist, respond; short-circuiting to the mock generator whenever a
// downstream dependency is missing or fails.
type Service struct {
	renderer  Renderer
	extractor *Extractor
	gateway   *Gateway
	mock      *MockGenerator
	publisher Publisher
	topic     string
	idGen     IDGenerator
	clock     Clock
	logger    *zap.Logger
}

// ServiceDeps carries the service's collaborators. Renderer and Gateway are
// optional; a nil value routes every request through the mock path.
type ServiceDeps struct {
	Renderer  Renderer
	Extractor *Extractor
	Gateway   *Gateway
	Mock      *MockGenerator
	Publisher Publisher
	Topic     string
	IDGen     IDGenerator
	Clock     Clock
	Logger    *zap.Logger
}

// NewService constructs a Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		renderer:  deps.Renderer,
		extractor: deps.Extractor,
		gateway:   deps.Gateway,
		mock:      deps.Mock,
		publisher: deps.Publisher,
		topic:     deps.Topic,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		logger:    logger,
	}
}

// Scrape runs the pipeline for one URL. The only error it returns is
// ErrMissingURL for malformed input; infra failures yield a mock success.
func (s *Service) Scrape(ctx context.Context, req ScrapeRequest) (ScrapeResult, error) {
	start := s.clock.Now()
	if strings.TrimSpace(req.URL) == "" {
		return ScrapeResult{}, ErrMissingURL
	}
	req = req.WithDefaults()

	if s.renderer == nil || s.gateway == nil || s.gateway.store == nil || s.gateway.blobs == nil {
		s.logger.Info("dependencies unconfigured, serving mock result",
			zap.String("url", req.URL))
		return s.fallback(req, start), nil
	}

	page, err := s.renderer.Render(ctx, req.URL)
	if err != nil {
		s.logger.Warn("render failed, serving mock result",
			zap.String("url", req.URL), zap.Error(err))
		return s.fallback(req, start), nil
	}

	drafts, err := s.extractor.Extract(req.URL, page.HTML)
	if err != nil {
		s.logger.Warn("extraction failed, serving mock result",
			zap.String("url", req.URL), zap.Error(err))
		return s.fallback(req, start), nil
	}

	opportunities := s.buildOpportunities(req, drafts)
	shot := s.buildScreenshot(page.Screenshot)

	inserted, err := s.gateway.Persist(ctx, opportunities, &shot)
	if err != nil {
		s.logger.Warn("persistence unavailable, serving mock result",
			zap.String("url", req.URL), zap.Error(err))
		return s.fallback(req, start), nil
	}
	metrics.ObserveScrape(metrics.OutcomeLive, s.clock.Now().Sub(start))
	metrics.AddOpportunitiesExtracted(len(opportunities))

	result := ScrapeResult{
		Success:            true,
		URL:                req.URL,
		Country:            req.Country,
		Source:             req.Source,
		OpportunitiesFound: len(opportunities),
		Opportunities:      opportunities,
		Screenshot:         shot,
	}
	s.publishCompletion(ctx, result, inserted)
	return result, nil
}

func (s *Service) buildOpportunities(req ScrapeRequest, drafts []Draft) []Opportunity {
	now := s.clock.Now()
	opportunities := make([]Opportunity, 0, len(drafts))
	for _, draft := range drafts {
		opportunities = append(opportunities, Opportunity{
			ID:          s.newID(),
			Title:       draft.Title,
			Description: draft.Description,
			SourceURL:   draft.SourceURL,
			SourceName:  req.Source,
			Country:     req.Country,
			ScrapedAt:   now,
		})
	}
	return opportunities
}

func (s *Service) buildScreenshot(raw []byte) Screenshot {
	return Screenshot{
		ID:     s.newID(),
		Base64: base64.StdEncoding.EncodeToString(raw),
		Bytes:  raw,
	}
}

// publishCompletion is best-effort; a publish failure never fails a scrape.
func (s *Service) publishCompletion(ctx context.Context, result ScrapeResult, inserted int) {
	if s.publisher == nil {
		return
	}
	event := CompletionEvent{
		URL:                result.URL,
		Source:             result.Source,
		Country:            result.Country,
		OpportunitiesFound: result.OpportunitiesFound,
		NewRecords:         inserted,
		ScreenshotURL:      result.Screenshot.URL,
		FinishedAt:         s.clock.Now(),
	}
	if _, err := s.publisher.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("completion publish failed", zap.Error(err))
	}
}

// fallback serves the mock result; if the generator itself blows up it
// reports the generator's failure shape instead of raising.
func (s *Service) fallback(req ScrapeRequest, start time.Time) (result ScrapeResult) {
	metrics.ObserveScrape(metrics.OutcomeMock, s.clock.Now().Sub(start))
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("mock generation panicked", zap.Any("panic", rec))
			result = s.mock.Failure(req)
		}
	}()
	return s.mock.Generate(req)
}

func (s *Service) newID() string {
	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("id generation failed", zap.Error(err))
		return fmt.Sprintf("fallback-%d", s.clock.Now().UnixNano())
	}
	return id
}
