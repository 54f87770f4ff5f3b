// Package fetch scrapes pages into plain text for research context and
// link-discovery snippets.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/textutil"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Fetcher retrieves and cleans remote pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves a URL and extracts title, main text content, and a short
// snippet.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*core.ScrapedPage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}

	return ParsePage(string(body))
}

// ParsePage extracts the readable content from raw HTML.
func ParsePage(html string) (*core.ScrapedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Remove common non-content elements
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, .ad, .advertisement, .cookie-banner").Remove()

	var textBuilder strings.Builder
	mainContentSelectors := []string{
		"article", "main", ".main-content", ".entry-content", ".post-content", ".article-body",
		"[role='main']",
		".content", "#content",
	}

	found := false
	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			s.Find("p, h1, h2, h3, h4, li, blockquote").Each(func(_ int, item *goquery.Selection) {
				textBuilder.WriteString(strings.TrimSpace(item.Text()))
				textBuilder.WriteString("\n\n")
			})
		})
		if textBuilder.Len() > 0 {
			found = true
			break
		}
	}

	if !found {
		doc.Find("body").Find("p, h1, h2, h3, h4, li, blockquote").Each(func(_ int, item *goquery.Selection) {
			textBuilder.WriteString(strings.TrimSpace(item.Text()))
			textBuilder.WriteString("\n\n")
		})
	}

	content := strings.TrimSpace(textBuilder.String())
	snippet := textutil.CollapseWhitespace(content)
	if len(snippet) > 300 {
		snippet = snippet[:300]
	}

	return &core.ScrapedPage{
		Title:   extractTitle(doc),
		Content: content,
		Snippet: snippet,
	}, nil
}

// extractTitle tries the document title, then OpenGraph, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if og, _ := doc.Find("meta[property='og:title']").Attr("content"); og != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
