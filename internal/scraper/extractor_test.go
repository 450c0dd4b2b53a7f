package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultMaxContainers, zap.NewNop())
}

func TestExtractorCascadePriority(t *testing.T) {
	t.Parallel()

	// Both .opportunity and article elements are present; only the first
	// matching selector's containers may be extracted.
	html := `<html><body>
		<div class="opportunity"><h3>Rural Water Grant</h3><p>Boreholes.</p><a href="/a">more</a></div>
		<article><h3>Ignored Article Grant</h3><p>Should not appear.</p></article>
	</body></html>`

	drafts, err := newTestExtractor().Extract("https://example.org/list", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Rural Water Grant", drafts[0].Title)
}

func TestExtractorContainerCap(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 37; i++ {
		fmt.Fprintf(&sb, `<div class="opportunity"><h3>Grant %02d</h3><p>Desc %02d</p></div>`, i, i)
	}
	sb.WriteString("</body></html>")

	drafts, err := newTestExtractor().Extract("https://example.org/", sb.String())
	require.NoError(t, err)
	require.Len(t, drafts, 10)
	require.Equal(t, "Grant 00", drafts[0].Title)
	require.Equal(t, "Grant 09", drafts[9].Title)
}

func TestExtractorMissingTitleExcluded(t *testing.T) {
	t.Parallel()

	// No heading, no link text over 10 characters: container yields nothing.
	html := `<html><body>
		<div class="opportunity"><span>short</span><a href="/x">tiny</a></div>
		<div class="opportunity"><h2>Valid Fund</h2></div>
	</body></html>`

	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Valid Fund", drafts[0].Title)
}

func TestExtractorLinkTextTitleFallback(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="opportunity">
			<a href="/short">tiny</a>
			<a href="/grants/7">Climate Adaptation Grant 2026</a>
		</div>
	</body></html>`

	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Climate Adaptation Grant 2026", drafts[0].Title)
}

func TestExtractorLinkResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		href string
		want string
	}{
		{"root-relative", "/grants/42", "https://example.org/grants/42"},
		{"relative", "grants/42", "https://example.org/grants/42"},
		{"absolute", "https://other.test/g/1", "https://other.test/g/1"},
		{"empty", "", "https://example.org/list"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			html := fmt.Sprintf(
				`<html><body><div class="opportunity"><h3>Some Grant</h3><a href=%q>go</a></div></body></html>`,
				tc.href,
			)
			drafts, err := newTestExtractor().Extract("https://example.org/list", html)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			require.Equal(t, tc.want, drafts[0].SourceURL)
		})
	}
}

func TestExtractorNoAnchorDefaultsToPageURL(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="opportunity"><h3>Anchorless Grant</h3></div></body></html>`
	drafts, err := newTestExtractor().Extract("https://example.org/list", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "https://example.org/list", drafts[0].SourceURL)
}

func TestExtractorHeadingInferenceFallback(t *testing.T) {
	t.Parallel()

	// Nothing in the selector cascade matches; the h2 mentioning "fund"
	// promotes its parent to a container.
	html := `<html><body>
		<section>
			<h2>Education Fund Window</h2>
			<p>Open to registered schools.</p>
			<a href="/apply">apply here</a>
		</section>
		<section>
			<h2>About us</h2>
			<p>Not a listing.</p>
		</section>
	</body></html>`

	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Education Fund Window", drafts[0].Title)
	require.Equal(t, "Open to registered schools.", drafts[0].Description)
	require.Equal(t, "https://example.org/apply", drafts[0].SourceURL)
}

func TestExtractorDescriptionFallsBackToContainerText(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div class="opportunity"><h3>Seed Grant</h3><span>Deadline March 2026</span></div>
	</body></html>`

	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Deadline March 2026", drafts[0].Description)
}

func TestExtractorDescriptionDefaultsToTitle(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="opportunity"><h3>Bare Grant</h3></div></body></html>`
	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, "Bare Grant", drafts[0].Description)
}

func TestExtractorNoContainersYieldsNothing(t *testing.T) {
	t.Parallel()

	html := `<html><body><p>Just a paragraph about nothing in particular.</p></body></html>`
	drafts, err := newTestExtractor().Extract("https://example.org/", html)
	require.NoError(t, err)
	require.Empty(t, drafts)
}

func TestDefaultContainerRulesOrder(t *testing.T) {
	t.Parallel()

	rules := DefaultContainerRules()
	require.Equal(t, "class-opportunity", rules[0].Name())
	require.Equal(t, "heading-inference", rules[len(rules)-1].Name())
}
