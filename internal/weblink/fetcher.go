// Package weblink fetches and extracts readable text from owner-configured
// external URLs: allow-list check, robots.txt compliance, rate limiting,
// readability extraction, and TTL-based refresh over durable link records.
package weblink

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// maxBodySize bounds how much of a page is read (2MB).
const maxBodySize = 2 * 1024 * 1024

// Fetcher wraps an HTTP client tuned for page fetching.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

// NewFetcher creates the client with pooled connections and a redirect cap.
func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Fetcher{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Get performs an HTTP GET with identifying headers.
func (f *Fetcher) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	return f.httpClient.Do(req)
}
