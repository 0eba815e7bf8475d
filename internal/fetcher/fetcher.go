// Package fetcher downloads article pages and extracts their readable text.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// DefaultUserAgent identifies the curator to publishers
const DefaultUserAgent = "Mozilla/5.0 (compatible; SportsEsportsBusinessCurator/1.0)"

// maxBodyBytes caps how much of a page is read
const maxBodyBytes = 4 << 20

// Page is a fetched document
type Page struct {
	// URL is the final URL after redirects
	URL  string
	HTML string
}

// Fetcher retrieves a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// HTTPFetcher fetches pages with a plain HTTP client
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher; a nil client gets a 5s timeout
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// Fetch downloads pageURL and decodes the body to UTF-8
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	utf8Reader, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = body
	}

	data, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	return &Page{URL: resp.Request.URL.String(), HTML: string(data)}, nil
}

// IsHTTPURL reports whether raw, ignoring surrounding space, is an absolute
// http or https URL with a host
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
