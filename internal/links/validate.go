package links

import (
	"context"
	"net/http"
	"time"

	"inkwell/internal/logger"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// LiveChecker validates external links with a HEAD request, falling back
// to GET for servers that reject HEAD. 2xx and 3xx are valid; everything
// else, including 403/429 and connection failure, is invalid.
type LiveChecker struct {
	client *http.Client
}

// NewLiveChecker creates a checker with the given per-request timeout.
func NewLiveChecker(timeout time.Duration) *LiveChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LiveChecker{
		client: &http.Client{
			Timeout: timeout,
			// Redirect targets are not followed: a 3xx is already a pass.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check reports whether the URL responds with a 2xx or 3xx status.
func (c *LiveChecker) Check(ctx context.Context, rawURL string) bool {
	if ok, tried := c.request(ctx, http.MethodHead, rawURL); tried {
		return ok
	}
	ok, _ := c.request(ctx, http.MethodGet, rawURL)
	return ok
}

// request performs one probe. tried=false means the method itself was not
// accepted (405 or transport-level refusal of HEAD) and a GET fallback is
// worth attempting.
func (c *LiveChecker) request(ctx context.Context, method, rawURL string) (ok, tried bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, true
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if method == http.MethodHead {
			return false, false
		}
		logger.Debug("Link probe failed", "url", rawURL, "error", err.Error())
		return false, true
	}
	defer func() { _ = resp.Body.Close() }()

	if method == http.MethodHead && resp.StatusCode == http.StatusMethodNotAllowed {
		return false, false
	}

	return resp.StatusCode >= 200 && resp.StatusCode < 400, true
}
