package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRendererUnavailable indicates headless Chrome could not be started.
var ErrRendererUnavailable = errors.New("renderer unavailable")

// RendererConfig controls the chromedp renderer.
type RendererConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	MaxParallel       int
	DomainQPS         float64
}

// Default render parameters.
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 800

	// quiesceMaxInflight and quiesceWindow define network idle: no more
	// than this many in-flight requests, sustained for the window.
	quiesceMaxInflight = 2
	quiesceWindow      = 500 * time.Millisecond
	quiescePoll        = 50 * time.Millisecond
)

// ChromedpRenderer renders pages using headless Chrome via chromedp. The
// browser process is owned by the renderer; each Render call gets its own
// tab context torn down on every exit path.
type ChromedpRenderer struct {
	allocCancel    context.CancelFunc
	browserCtx     context.Context
	browserCancel  context.CancelFunc
	cfg            RendererConfig
	sem            chan struct{}
	domainLimiters sync.Map
	logger         *zap.Logger
}

// NewChromedpRenderer starts headless Chrome and verifies it is usable.
// Construction failure means the dependency is unavailable; callers fall
// back to the mock path rather than erroring.
func NewChromedpRenderer(cfg RendererConfig, logger *zap.Logger) (*ChromedpRenderer, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultNavigationTimeout
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = DefaultViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = DefaultViewportHeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %v", ErrRendererUnavailable, err)
	}

	var sem chan struct{}
	if cfg.MaxParallel > 0 {
		sem = make(chan struct{}, cfg.MaxParallel)
	}
	return &ChromedpRenderer{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		cfg:           cfg,
		sem:           sem,
		logger:        logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *ChromedpRenderer) Close(_ context.Context) error {
	if r == nil {
		return nil
	}
	r.browserCancel()
	r.allocCancel()
	return nil
}

// Render navigates to rawURL, waits for network quiescence, and returns the
// rendered DOM plus a viewport screenshot.
func (r *ChromedpRenderer) Render(ctx context.Context, rawURL string) (RenderedPage, error) {
	if r == nil {
		return RenderedPage{}, ErrRendererUnavailable
	}
	release, err := r.acquireSlot(ctx)
	if err != nil {
		return RenderedPage{}, err
	}
	defer release()

	if err := r.waitDomainBudget(ctx, rawURL); err != nil {
		return RenderedPage{}, fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	tracker := newInflightTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	var (
		html string
		shot []byte
	)
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(
			int64(r.cfg.ViewportWidth), int64(r.cfg.ViewportHeight), 1.0, false,
		),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		tracker.quiesce(quiesceMaxInflight, quiesceWindow),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.CaptureScreenshot(&shot),
	}
	start := time.Now()
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return RenderedPage{}, fmt.Errorf("chromedp run: %w", err)
	}
	r.logger.Debug("page rendered",
		zap.String("url", rawURL),
		zap.Int("html_bytes", len(html)),
		zap.Int("screenshot_bytes", len(shot)),
		zap.Duration("duration", time.Since(start)),
	)
	return RenderedPage{HTML: html, Screenshot: shot}, nil
}

func (r *ChromedpRenderer) acquireSlot(ctx context.Context) (func(), error) {
	if r.sem == nil {
		return func() {}, nil
	}
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (r *ChromedpRenderer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if r.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.cfg.DomainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// inflightTracker counts in-flight network requests from CDP events.
type inflightTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{inflight: make(map[network.RequestID]struct{})}
}

func (t *inflightTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight[e.RequestID] = struct{}{}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.mu.Lock()
		delete(t.inflight, e.RequestID)
		t.mu.Unlock()
	case *network.EventLoadingFailed:
		t.mu.Lock()
		delete(t.inflight, e.RequestID)
		t.mu.Unlock()
	}
}

func (t *inflightTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// quiesce blocks until the in-flight request count stays at or below
// maxInflight for a full window, or the task context expires.
func (t *inflightTracker) quiesce(maxInflight int, window time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(quiescePoll)
		defer ticker.Stop()

		var quietSince time.Time
		for {
			select {
			case <-ctx.Done():
				return fmt.Errorf("network quiesce: %w", ctx.Err())
			case now := <-ticker.C:
				if t.count() > maxInflight {
					quietSince = time.Time{}
					continue
				}
				if quietSince.IsZero() {
					quietSince = now
					continue
				}
				if now.Sub(quietSince) >= window {
					return nil
				}
			}
		}
	})
}
