package fetcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserFetcher renders pages in a headless Chromium. It is slower than
// HTTPFetcher but sees content injected by JavaScript.
type BrowserFetcher struct {
	mu         sync.Mutex
	browser    *rod.Browser
	headless   bool
	profileDir string
	timeout    time.Duration
}

// NewBrowserFetcher creates a fetcher; the browser starts on first use.
// A non-empty profileDir keeps cookies (consent banners, logins) between runs.
func NewBrowserFetcher(headless bool, profileDir string, timeout time.Duration) (*BrowserFetcher, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if profileDir != "" {
		if err := os.MkdirAll(profileDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create browser profile directory: %w", err)
		}
	}
	return &BrowserFetcher{headless: headless, profileDir: profileDir, timeout: timeout}, nil
}

// initBrowser launches the browser once
func (b *BrowserFetcher) initBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return nil
	}

	l := launcher.New().Headless(b.headless)
	if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if b.profileDir != "" {
		l = l.UserDataDir(b.profileDir)
	}
	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	b.browser = browser
	return nil
}

// Close shuts the browser down
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

// Fetch opens url in a new tab and returns the rendered HTML
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := b.initBrowser(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Page{URL: finalURL, HTML: html}, nil
}
