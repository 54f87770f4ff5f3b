// Package links implements the SEO link-management pass: counting,
// pruning, validating, discovering, and injecting hyperlinks in article
// content under fixed quotas.
package links

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/logger"
)

// Options holds the quotas and thresholds for one pass.
type Options struct {
	MaxInternal      int     // Internal anchors kept after pruning
	MaxExternal      int     // External anchors kept after pruning
	MaxValidExternal int     // Hard cap after validation and discovery
	MaxTotal         int     // Combined cap
	ScoreThreshold   float64 // Minimum relevance score for discovered links
	SiteHost         string  // Hostname classified as internal
}

// DefaultOptions returns the standard quotas.
func DefaultOptions() Options {
	return Options{
		MaxInternal:      4,
		MaxExternal:      3,
		MaxValidExternal: 4,
		MaxTotal:         7,
		ScoreThreshold:   75,
	}
}

// Validator checks whether an external URL is alive.
type Validator interface {
	Check(ctx context.Context, rawURL string) bool
}

// RelatedItem is an internal-link candidate from the same category.
type RelatedItem struct {
	Title string
	Path  string
}

// RelatedSource supplies internal-link candidates.
type RelatedSource interface {
	Related(ctx context.Context, category string, limit int) ([]RelatedItem, error)
}

// Stats summarizes what one pass did to the content.
type Stats struct {
	Internal   int // Internal anchors in the final content
	External   int // External anchors in the final content
	Demoted    int // Anchors demoted to plain text
	Discovered int // External links added by discovery
	Injected   int // Internal links injected
}

// Total returns the combined link count.
func (s Stats) Total() int { return s.Internal + s.External }

// Engine executes the link-management state machine over one article.
type Engine struct {
	opts      Options
	validator Validator
	discovery *Discoverer // Optional; nil disables discovery
	related   RelatedSource
}

// NewEngine creates a link engine. validator, discovery, and related may be
// nil, disabling the corresponding phase.
func NewEngine(opts Options, validator Validator, discovery *Discoverer, related RelatedSource) *Engine {
	return &Engine{
		opts:      opts,
		validator: validator,
		discovery: discovery,
		related:   related,
	}
}

// Process runs count, prune, validate, discover, and inject over the
// article content and returns the revised HTML.
func (e *Engine) Process(ctx context.Context, content, category string) (string, Stats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", Stats{}, fmt.Errorf("failed to parse content: %w", err)
	}

	var stats Stats

	e.prune(doc, &stats)
	validExternal := e.validate(ctx, doc, &stats)

	if e.discovery != nil && validExternal < 1 {
		added := e.discovery.Run(ctx, doc, e.opts, &stats)
		validExternal += added
	}

	e.inject(ctx, doc, category, &stats)

	stats.Internal, stats.External = countLinks(doc, e.opts.SiteHost)

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", stats, fmt.Errorf("failed to serialize content: %w", err)
	}

	logger.Info("Link pass complete", "internal", stats.Internal, "external", stats.External,
		"demoted", stats.Demoted, "discovered", stats.Discovered, "injected", stats.Injected)

	return strings.TrimSpace(out), stats, nil
}

// Records extracts the link records from content, in document order.
func Records(content, siteHost string) ([]core.LinkRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	var records []core.LinkRecord
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		kind := core.LinkInternal
		if isExternal(href, siteHost) {
			kind = core.LinkExternal
		}
		records = append(records, core.LinkRecord{
			URL:        href,
			AnchorText: strings.TrimSpace(a.Text()),
			Kind:       kind,
			Position:   i,
		})
	})
	return records, nil
}

// prune de-duplicates hrefs and demotes anchors beyond the per-kind quotas,
// keeping the first occurrences in document order.
func (e *Engine) prune(doc *goquery.Document, stats *Stats) {
	seen := make(map[string]bool)
	internal, external := 0, 0
	var demote []*goquery.Selection

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || seen[href] {
			demote = append(demote, a)
			return
		}
		seen[href] = true

		if isExternal(href, e.opts.SiteHost) {
			external++
			if external > e.opts.MaxExternal {
				demote = append(demote, a)
			}
		} else {
			internal++
			if internal > e.opts.MaxInternal {
				demote = append(demote, a)
			}
		}
	})

	for _, a := range demote {
		demoteToText(a)
		stats.Demoted++
	}
}

// validate runs the liveness check over the remaining external anchors.
// Invalid anchors are demoted to plain text so the visible copy survives;
// valid anchors are force-annotated as follow links. Returns the number of
// valid external anchors kept.
func (e *Engine) validate(ctx context.Context, doc *goquery.Document, stats *Stats) int {
	if e.validator == nil {
		return doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			return isExternal(href, e.opts.SiteHost)
		}).Length()
	}

	valid := 0
	var demote []*goquery.Selection

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !isExternal(href, e.opts.SiteHost) {
			return
		}
		if valid >= e.opts.MaxValidExternal || !e.validator.Check(ctx, href) {
			demote = append(demote, a)
			return
		}
		a.SetAttr("rel", "follow")
		valid++
	})

	for _, a := range demote {
		demoteToText(a)
		stats.Demoted++
	}
	return valid
}

// injectTemplates are rotated so consecutive injected sentences differ.
var injectTemplates = []string{
	"You might also like: ",
	"Related reading: ",
	"Worth a closer look: ",
}

// inject splices internal-link sentences after computed paragraph
// positions, up to the remaining internal and total quotas.
func (e *Engine) inject(ctx context.Context, doc *goquery.Document, category string, stats *Stats) {
	if e.related == nil {
		return
	}

	internal, external := countLinks(doc, e.opts.SiteHost)
	budget := e.opts.MaxInternal - internal
	if remaining := e.opts.MaxTotal - internal - external; remaining < budget {
		budget = remaining
	}
	if budget <= 0 {
		return
	}

	items, err := e.related.Related(ctx, category, budget*2)
	if err != nil {
		logger.Warn("Related-content lookup failed, skipping injection", "error", err.Error())
		return
	}

	existing := existingPaths(doc)
	paragraphs := doc.Find("p")
	positions := injectionPositions(paragraphs.Length())

	added := 0
	for _, item := range items {
		if added >= budget || added >= len(positions) {
			break
		}
		if item.Path == "" || existing[item.Path] {
			continue
		}

		sentence := fmt.Sprintf(`<p>%s<a href="%s">%s</a></p>`,
			injectTemplates[added%len(injectTemplates)],
			html.EscapeString(item.Path), html.EscapeString(item.Title))

		paragraphs.Eq(positions[added]).AfterHtml(sentence)
		existing[item.Path] = true
		added++
		stats.Injected++
	}
}

// injectionPositions computes the paragraph indices internal links go
// after: roughly the first, middle, and second-to-last paragraph.
func injectionPositions(paragraphCount int) []int {
	if paragraphCount == 0 {
		return nil
	}
	if paragraphCount <= 2 {
		return []int{paragraphCount - 1}
	}

	positions := []int{0, paragraphCount / 2, paragraphCount - 2}
	// De-duplicate while preserving order for small documents.
	seen := make(map[int]bool)
	var out []int
	for _, p := range positions {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// existingPaths indexes hrefs already present, by path containment.
func existingPaths(doc *goquery.Document) map[string]bool {
	paths := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			paths[href] = true
			if u, err := url.Parse(href); err == nil && u.Path != "" {
				paths[u.Path] = true
			}
		}
	})
	return paths
}

// countLinks tallies internal and external anchors currently in the tree.
func countLinks(doc *goquery.Document, siteHost string) (internal, external int) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if isExternal(href, siteHost) {
			external++
		} else {
			internal++
		}
	})
	return internal, external
}

// isExternal classifies an href. Path-relative links and links to the
// configured site host are internal; everything else with a scheme is
// external.
func isExternal(href, siteHost string) bool {
	if href == "" || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
		return false
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return false
	}
	if siteHost != "" && strings.EqualFold(u.Host, siteHost) {
		return false
	}
	return true
}

// demoteToText replaces an anchor with its visible text.
func demoteToText(a *goquery.Selection) {
	a.ReplaceWithHtml(html.EscapeString(strings.TrimSpace(a.Text())))
}
