// Package scraper downloads product pages and pulls title candidates out of
// their HTML.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage   = "en-US,en;q=0.9"

	defaultMaxSize = 4 << 20
)

// Page is a retrieved document. Non-200 responses are returned as pages, not
// errors; only transport failures are errors.
type Page struct {
	StatusCode int
	Body       []byte
}

func (p *Page) OK() bool {
	return p != nil && p.StatusCode == http.StatusOK
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxSize    int64
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxSize:   defaultMaxSize,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Page{StatusCode: resp.StatusCode, Body: body}, nil
}
