package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"inkwell/internal/core"
	"inkwell/internal/logger"
)

// DuckDuckGoProvider implements the Provider interface using the DuckDuckGo
// HTML endpoint, which needs no API key.
type DuckDuckGoProvider struct {
	client    *http.Client
	userAgent string
	rateLimit time.Duration

	mu       sync.Mutex // Guards lastCall; the provider is shared across runs
	lastCall time.Time
}

// NewDuckDuckGoProvider creates a new DuckDuckGo search provider.
func NewDuckDuckGoProvider(rateLimit time.Duration) *DuckDuckGoProvider {
	if rateLimit <= 0 {
		rateLimit = 2 * time.Second
	}
	return &DuckDuckGoProvider{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		rateLimit: rateLimit,
	}
}

// GetName returns the name of this provider.
func (d *DuckDuckGoProvider) GetName() string {
	return "DuckDuckGo"
}

// Search performs a search and returns parsed results.
func (d *DuckDuckGoProvider) Search(ctx context.Context, query string, cfg Config) ([]core.SearchResult, error) {
	d.waitForRateLimit()

	searchURL := d.buildSearchURL(query)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	bodyStr := string(body)
	if strings.Contains(bodyStr, "captcha") || strings.Contains(bodyStr, "Captcha") {
		return nil, fmt.Errorf("search blocked by CAPTCHA - try again later")
	}

	results := d.parseSearchResults(bodyStr, cfg.MaxResults)
	logger.Info("Search completed", "query", query, "results_found", len(results))

	return results, nil
}

// waitForRateLimit blocks until the rate-limit window since the previous
// call has elapsed, then claims the next slot. Concurrent callers serialize
// on the mutex, so each one observes the slot claimed by the caller before
// it.
func (d *DuckDuckGoProvider) waitForRateLimit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if elapsed := time.Since(d.lastCall); elapsed < d.rateLimit {
		time.Sleep(d.rateLimit - elapsed)
	}
	d.lastCall = time.Now()
}

// buildSearchURL constructs the DuckDuckGo search URL with parameters.
func (d *DuckDuckGoProvider) buildSearchURL(query string) string {
	baseURL := "https://html.duckduckgo.com/html/"
	params := url.Values{}
	params.Set("q", query)
	params.Set("b", "0")
	params.Set("kl", "us-en")
	return baseURL + "?" + params.Encode()
}

var (
	resultPattern  = regexp.MustCompile(`<div class="result[^"]*"[^>]*>(.*?)</div>`)
	titlePattern   = regexp.MustCompile(`<a[^>]*class="result__a"[^>]*href="([^"]*)"[^>]*>(.*?)</a>`)
	snippetPattern = regexp.MustCompile(`<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// parseSearchResults extracts search results from the HTML response.
// These patterns may need adjustment if DuckDuckGo changes their markup.
func (d *DuckDuckGoProvider) parseSearchResults(html string, maxResults int) []core.SearchResult {
	var results []core.SearchResult

	for i, match := range resultPattern.FindAllStringSubmatch(html, -1) {
		if i >= maxResults {
			break
		}

		resultHTML := match[1]

		titleMatch := titlePattern.FindStringSubmatch(resultHTML)
		if len(titleMatch) < 3 {
			continue
		}

		finalURL := d.extractFinalURL(titleMatch[1])
		if finalURL == "" {
			continue
		}

		snippet := ""
		if snippetMatch := snippetPattern.FindStringSubmatch(resultHTML); len(snippetMatch) >= 2 {
			snippet = d.cleanHTMLText(snippetMatch[1])
		}

		results = append(results, core.SearchResult{
			URL:     finalURL,
			Title:   d.cleanHTMLText(titleMatch[2]),
			Snippet: snippet,
		})
	}

	return results
}

// extractFinalURL extracts the actual URL from DuckDuckGo's redirect URL.
func (d *DuckDuckGoProvider) extractFinalURL(redirectURL string) string {
	// DuckDuckGo uses URLs like: /l/?uddg=https%3A//example.com/...&rut=...
	if strings.HasPrefix(redirectURL, "/l/?") {
		parsed, err := url.Parse(redirectURL)
		if err != nil {
			return ""
		}
		if uddg := parsed.Query().Get("uddg"); uddg != "" {
			decoded, err := url.QueryUnescape(uddg)
			if err != nil {
				return ""
			}
			return decoded
		}
	}

	if strings.HasPrefix(redirectURL, "http") {
		return redirectURL
	}

	return ""
}

// cleanHTMLText removes HTML tags and decodes common HTML entities.
func (d *DuckDuckGoProvider) cleanHTMLText(text string) string {
	text = tagPattern.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}
