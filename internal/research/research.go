// Package research aggregates contextual text for a topic from multiple
// sources. Every source is optional: failures are logged and skipped, never
// propagated, so a run can always proceed from general knowledge.
package research

import (
	"context"
	"regexp"
	"strings"

	"inkwell/internal/core"
	"inkwell/internal/logger"
	"inkwell/internal/search"
)

// urlRegex finds the first well-formed http(s) URL embedded in free text.
var urlRegex = regexp.MustCompile(`https?://[^\s)]+`)

// Searcher is the search capability the aggregator consumes.
type Searcher interface {
	Search(ctx context.Context, query string, cfg search.Config) ([]core.SearchResult, error)
}

// Scraper is the URL-fetch capability the aggregator consumes.
type Scraper interface {
	Fetch(ctx context.Context, pageURL string) (*core.ScrapedPage, error)
}

// Aggregator collects research context for a topic.
type Aggregator struct {
	searcher   Searcher
	scraper    Scraper
	maxResults int
	maxChars   int
}

// NewAggregator creates a research aggregator.
func NewAggregator(searcher Searcher, scraper Scraper, maxResults int) *Aggregator {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Aggregator{
		searcher:   searcher,
		scraper:    scraper,
		maxResults: maxResults,
		maxChars:   6000,
	}
}

// Context is the aggregated research output consumed by the draft stage.
type Context struct {
	Topic    string
	Excerpts []string // Snippets and scraped passages, in collection order
	Sources  []string // URLs the excerpts came from
}

// Text joins the excerpts into a single research block, capped in size.
func (c *Context) Text() string {
	joined := strings.Join(c.Excerpts, "\n\n")
	if len(joined) > 6000 {
		joined = joined[:6000]
	}
	return joined
}

// ExtractPromptURL returns the first well-formed http(s) URL embedded in a
// custom prompt, trimmed of trailing punctuation, or "" when none exists.
func ExtractPromptURL(prompt string) string {
	match := urlRegex.FindString(prompt)
	return strings.TrimRight(match, ".,;:!?\"')")
}

// Gather collects research context for the topic. A custom prompt may seed
// the context with a scraped page; scrape or search failure degrades to
// whatever was collected so far.
func (a *Aggregator) Gather(ctx context.Context, topic, customPrompt string) *Context {
	rc := &Context{Topic: topic}

	if seedURL := ExtractPromptURL(customPrompt); seedURL != "" && a.scraper != nil {
		page, err := a.scraper.Fetch(ctx, seedURL)
		if err != nil {
			logger.Warn("Prompt URL scrape failed, proceeding from general knowledge", "url", seedURL, "error", err.Error())
		} else if page.Content != "" {
			excerpt := page.Content
			if len(excerpt) > 2000 {
				excerpt = excerpt[:2000]
			}
			rc.Excerpts = append(rc.Excerpts, excerpt)
			rc.Sources = append(rc.Sources, seedURL)
		}
	}

	if a.searcher == nil {
		return rc
	}

	cfg := search.DefaultConfig()
	cfg.MaxResults = a.maxResults
	results, err := a.searcher.Search(ctx, topic, cfg)
	if err != nil {
		logger.Warn("Research search failed, skipping", "topic", topic, "error", err.Error())
		return rc
	}

	for _, r := range results {
		if r.Snippet == "" {
			continue
		}
		rc.Excerpts = append(rc.Excerpts, r.Title+": "+r.Snippet)
		rc.Sources = append(rc.Sources, r.URL)
	}

	logger.Info("Research gathered", "topic", topic, "excerpts", len(rc.Excerpts))
	return rc
}
