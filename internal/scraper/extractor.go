package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ContainerRule locates candidate record containers in a parsed document.
// Rules are evaluated in order and the first rule returning at least one
// container wins; matches are never merged across rules.
type ContainerRule interface {
	Name() string
	Containers(doc *goquery.Document) []*goquery.Selection
}

// selectorRule matches containers with a single CSS selector.
type selectorRule struct {
	name     string
	selector string
}

func (r selectorRule) Name() string { return r.name }

func (r selectorRule) Containers(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find(r.selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// headingRule is the last-resort fallback: any h1-h4 whose text mentions a
// funding keyword marks its parent element as a container.
type headingRule struct{}

func (headingRule) Name() string { return "heading-inference" }

func (headingRule) Containers(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find("h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		if strings.Contains(text, "grant") ||
			strings.Contains(text, "fund") ||
			strings.Contains(text, "opportunity") {
			if parent := s.Parent(); parent.Length() > 0 {
				out = append(out, parent)
			}
		}
	})
	return out
}

// DefaultContainerRules returns the cascade in priority order: explicit
// listing class names, attribute-substring matches on the same tokens,
// generic card/listing containers, and finally heading inference.
func DefaultContainerRules() []ContainerRule {
	rules := []ContainerRule{
		selectorRule{name: "class-opportunity", selector: ".opportunity"},
		selectorRule{name: "class-grant", selector: ".grant"},
		selectorRule{name: "class-funding", selector: ".funding"},
		selectorRule{name: "class-call", selector: ".call"},
		selectorRule{name: "attr-opportunity", selector: `[class*="opportunity"]`},
		selectorRule{name: "attr-grant", selector: `[class*="grant"]`},
		selectorRule{name: "attr-funding", selector: `[class*="funding"]`},
		selectorRule{name: "attr-call", selector: `[class*="call"]`},
		selectorRule{name: "generic-article", selector: "article"},
		selectorRule{name: "generic-post", selector: ".post"},
		selectorRule{name: "generic-item", selector: ".item"},
		selectorRule{name: "generic-card", selector: ".card"},
		selectorRule{name: "generic-listing", selector: ".listing"},
		selectorRule{name: "generic-result", selector: ".result"},
		selectorRule{name: "generic-program", selector: ".program"},
	}
	return append(rules, headingRule{})
}

const (
	// DefaultMaxContainers bounds per-page work for predictable latency.
	DefaultMaxContainers = 10

	// minLinkTitleLen is the exclusive length threshold for treating link
	// text as a title when no heading-like element exists.
	minLinkTitleLen = 10
)

// Extractor turns rendered HTML into ordered opportunity drafts.
type Extractor struct {
	rules         []ContainerRule
	maxContainers int
	logger        *zap.Logger
}

// NewExtractor builds an Extractor with the default rule cascade. New rules
// can be appended via WithRules without disturbing existing priority.
func NewExtractor(maxContainers int, logger *zap.Logger) *Extractor {
	if maxContainers <= 0 {
		maxContainers = DefaultMaxContainers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		rules:         DefaultContainerRules(),
		maxContainers: maxContainers,
		logger:        logger,
	}
}

// WithRules replaces the rule cascade. Intended for tests and for callers
// registering additional heuristics behind the defaults.
func (e *Extractor) WithRules(rules []ContainerRule) *Extractor {
	e.rules = rules
	return e
}

// Extract parses the rendered HTML and returns drafts in container order.
// A container that fails extraction is skipped without aborting siblings.
func (e *Extractor) Extract(pageURL string, html string) ([]Draft, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	containers, ruleName := e.findContainers(doc)
	if len(containers) == 0 {
		e.logger.Debug("no containers matched", zap.String("url", pageURL))
		return nil, nil
	}
	if len(containers) > e.maxContainers {
		containers = containers[:e.maxContainers]
	}
	e.logger.Debug("containers located",
		zap.String("rule", ruleName),
		zap.Int("count", len(containers)),
	)

	drafts := make([]Draft, 0, len(containers))
	for i, container := range containers {
		draft, ok := e.extractOne(container, base, pageURL)
		if !ok {
			e.logger.Debug("container skipped", zap.Int("index", i))
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func (e *Extractor) findContainers(doc *goquery.Document) ([]*goquery.Selection, string) {
	for _, rule := range e.rules {
		if containers := rule.Containers(doc); len(containers) > 0 {
			return containers, rule.Name()
		}
	}
	return nil, ""
}

// extractOne derives a draft from a single container. Panics from malformed
// markup are contained here so one bad container cannot sink the rest.
func (e *Extractor) extractOne(container *goquery.Selection, base *url.URL, pageURL string) (draft Draft, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("container extraction panicked", zap.Any("panic", rec))
			ok = false
		}
	}()

	title := extractTitle(container)
	if title == "" {
		return Draft{}, false
	}

	return Draft{
		Title:       title,
		Description: extractDescription(container, title),
		SourceURL:   extractLink(container, base, pageURL),
	}, true
}

func extractTitle(container *goquery.Selection) string {
	heading := container.Find(`h1, h2, h3, h4, h5, h6, [class*="title"], [class*="heading"]`).First()
	if title := collapseSpace(heading.Text()); title != "" {
		return title
	}
	// No heading: take the first link whose text is long enough to be a title.
	var title string
	container.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := collapseSpace(a.Text())
		if utf8.RuneCountInString(text) > minLinkTitleLen {
			title = text
			return false
		}
		return true
	})
	return title
}

func extractDescription(container *goquery.Selection, title string) string {
	desc := container.Find(`p, [class*="description"], [class*="summary"], [class*="content"]`).First()
	if text := collapseSpace(desc.Text()); text != "" {
		return text
	}
	// Best-effort: container text with the title substring removed. Naive
	// replacement may leave residual whitespace; accepted approximation.
	text := collapseSpace(strings.Replace(container.Text(), title, "", 1))
	if text != "" {
		return text
	}
	return title
}

func extractLink(container *goquery.Selection, base *url.URL, pageURL string) string {
	href, _ := container.Find("a[href]").First().Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		return pageURL
	}
	ref, err := url.Parse(href)
	if err != nil {
		return pageURL
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
