package links

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/logger"
	"inkwell/internal/provider"
	"inkwell/internal/search"
	"inkwell/internal/textutil"
)

// Searcher is the discovery backend for candidate URLs.
type Searcher interface {
	Search(ctx context.Context, query string, cfg search.Config) ([]core.SearchResult, error)
}

// SnippetFetcher retrieves a short text snippet for a candidate URL.
type SnippetFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*core.ScrapedPage, error)
}

// Discoverer finds and inserts new external links when an article ends the
// validation phase with none.
type Discoverer struct {
	searcher Searcher
	fetcher  SnippetFetcher
	scorer   provider.Generator // Relevance scoring; nil or exhausted triggers the forced-acceptance path
}

// NewDiscoverer creates a link discoverer.
func NewDiscoverer(searcher Searcher, fetcher SnippetFetcher, scorer provider.Generator) *Discoverer {
	return &Discoverer{searcher: searcher, fetcher: fetcher, scorer: scorer}
}

// Run discovers external links for the document and inserts accepted
// candidates after the 2nd-3rd paragraph. Returns how many links were
// added. Discovery failure only logs; the pass never aborts the run.
func (d *Discoverer) Run(ctx context.Context, doc *goquery.Document, opts Options, stats *Stats) int {
	if d.searcher == nil {
		return 0
	}

	topic := primaryHeading(doc)
	if topic == "" {
		return 0
	}

	cfg := search.DefaultConfig()
	cfg.MaxResults = 5
	results, err := d.searcher.Search(ctx, topic, cfg)
	if err != nil {
		logger.Warn("Link discovery search failed, skipping", "topic", topic, "error", err.Error())
		return 0
	}

	existing := existingPaths(doc)
	added := 0
	forcedUsed := false

	for _, candidate := range results {
		if added >= 1 {
			break
		}
		if candidate.URL == "" || existing[candidate.URL] {
			continue
		}

		snippet := candidate.Snippet
		if snippet == "" && d.fetcher != nil {
			if page, err := d.fetcher.Fetch(ctx, candidate.URL); err == nil {
				snippet = page.Snippet
			}
		}
		if snippet == "" {
			continue
		}

		accept := false
		score, err := d.scoreRelevance(ctx, topic, candidate.Title, snippet)
		switch {
		case err == nil:
			accept = score >= opts.ScoreThreshold
		case !forcedUsed:
			// Scorer unavailable and nothing added yet: accept the first
			// candidate with a usable snippet as a last resort, once.
			logger.Warn("Relevance scorer unavailable, forcing first candidate", "url", candidate.URL)
			accept = true
			forcedUsed = true
		}

		if !accept {
			continue
		}

		insertDiscovered(doc, candidate)
		existing[candidate.URL] = true
		added++
		stats.Discovered++
		logger.Info("Discovered external link", "url", candidate.URL, "score", score)
	}

	return added
}

var leadingNumber = regexp.MustCompile(`\d{1,3}`)

// scoreRelevance asks the provider chain to rate candidate relevance on a
// 0-100 scale.
func (d *Discoverer) scoreRelevance(ctx context.Context, topic, title, snippet string) (float64, error) {
	if d.scorer == nil {
		return 0, fmt.Errorf("no scorer configured")
	}

	resp, err := d.scorer.Generate(ctx, provider.Request{
		Kind:   provider.KindChat,
		System: "You rate how relevant a web page is to an article topic. Respond with a single integer 0-100 and nothing else.",
		User:   fmt.Sprintf("Article topic: %s\n\nPage title: %s\nPage snippet: %s\n\nRelevance score:", topic, title, snippet),
	})
	if err != nil {
		return 0, err
	}

	match := leadingNumber.FindString(resp.Text)
	if match == "" {
		return 0, fmt.Errorf("unparseable relevance response: %q", resp.Text)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, err
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// insertDiscovered splices the accepted candidate after the 2nd paragraph,
// or the 3rd when the document is long enough, with the suggested anchor
// text.
func insertDiscovered(doc *goquery.Document, candidate core.SearchResult) {
	anchorText := textutil.CollapseWhitespace(candidate.Title)
	if anchorText == "" {
		anchorText = candidate.URL
	}

	sentence := fmt.Sprintf(`<p>For further background, see <a href="%s" rel="follow">%s</a>.</p>`,
		html.EscapeString(candidate.URL), html.EscapeString(anchorText))

	paragraphs := doc.Find("p")
	idx := 1 // After the 2nd paragraph
	if paragraphs.Length() >= 4 {
		idx = 2
	}
	if paragraphs.Length() == 0 {
		doc.Find("body").AppendHtml(sentence)
		return
	}
	if idx >= paragraphs.Length() {
		idx = paragraphs.Length() - 1
	}
	paragraphs.Eq(idx).AfterHtml(sentence)
}

// primaryHeading derives the discovery topic from the article's first
// heading.
func primaryHeading(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "h2"} {
		if text := textutil.CollapseWhitespace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
