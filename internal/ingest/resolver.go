package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BrowserUserAgent is sent to redirectors, which serve a consent page to
// clients that do not look like a browser.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	DefaultRedirectHosts     = []string{"news.google.com"}
	DefaultInterstitialHosts = []string{"consent.google.com"}
)

// Resolver turns aggregator redirect links into their destination URL
type Resolver struct {
	client       *http.Client
	redirectors  []string
	interstitial []string
	timeout      time.Duration
	logger       *slog.Logger
}

// NewResolver creates a resolver. Host entries match the URL host exactly
// (with or without port) or as a parent domain.
func NewResolver(client *http.Client, redirectors, interstitial []string, timeout time.Duration, logger *slog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:       client,
		redirectors:  lowerAll(redirectors),
		interstitial: lowerAll(interstitial),
		timeout:      timeout,
		logger:       logger,
	}
}

// IsRedirector reports whether link points at a configured redirector host
func (r *Resolver) IsRedirector(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return matchHost(u, r.redirectors)
}

// Resolve follows redirects from link and returns the final URL. Any
// failure, or landing on an interstitial host, yields link unchanged.
func (r *Resolver) Resolve(ctx context.Context, link string) string {
	if r == nil || !r.IsRedirector(link) {
		return link
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return link
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("redirect resolution failed", "url", link, "error", err)
		return link
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	final := resp.Request.URL
	if matchHost(final, r.interstitial) {
		r.logger.Debug("redirect landed on interstitial", "url", link, "final", final.String())
		return link
	}
	return final.String()
}

func matchHost(u *url.URL, hosts []string) bool {
	host := strings.ToLower(u.Host)
	name := strings.ToLower(u.Hostname())
	for _, h := range hosts {
		if host == h || name == h || strings.HasSuffix(name, "."+h) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
