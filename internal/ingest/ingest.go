// Package ingest pulls feed entries into the article store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
	"github.com/tkilaker/curator/internal/registry"
)

// ShareSource labels articles submitted through the share intake
const ShareSource = "share-target"

// ErrInvalidURL is returned by AddShared for a missing or non-http URL
var ErrInvalidURL = errors.New("invalid url")

// Sources provides the feeds to poll and the title blacklist
type Sources interface {
	ActiveFeeds(ctx context.Context) ([]*database.Feed, error)
	Blacklist(ctx context.Context) (registry.Blacklist, error)
}

// Store is the article write path
type Store interface {
	UpsertArticle(ctx context.Context, article database.NewArticle) (database.UpsertResult, error)
}

// Result summarizes one ingestion run
type Result struct {
	Ingested    int `json:"ingested"`
	Duplicates  int `json:"duplicates"`
	Blacklisted int `json:"blacklisted"`
	Failures    int `json:"failures"`
	// Interrupted is set when the context ended before every feed was read
	Interrupted bool `json:"interrupted,omitempty"`
}

// Pipeline runs ingestion over all active feeds
type Pipeline struct {
	sources  Sources
	store    Store
	feeds    FeedReader
	resolver *Resolver
	pages    fetcher.Fetcher
	logger   *slog.Logger
}

// New creates a pipeline. resolver and pages may be nil; without a
// resolver links are stored as published, without pages shared URLs
// without a title keep the URL as title.
func New(sources Sources, store Store, feeds FeedReader, resolver *Resolver, pages fetcher.Fetcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sources:  sources,
		store:    store,
		feeds:    feeds,
		resolver: resolver,
		pages:    pages,
		logger:   logger,
	}
}

// Run polls every active feed once. Feed and item failures are logged and
// counted; only failing to load the feeds or the blacklist is an error.
// When ctx ends mid-run the counts so far are returned with Interrupted set.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result

	feeds, err := p.sources.ActiveFeeds(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load feeds: %w", err)
	}
	blacklist, err := p.sources.Blacklist(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load blacklist: %w", err)
	}

	p.logger.Info("ingestion started", "feeds", len(feeds), "keywords", blacklist.Len())

	done := 0
	for _, feed := range feeds {
		if ctx.Err() != nil {
			break
		}
		p.ingestFeed(ctx, feed, blacklist, &res)
		done++
	}

	if err := ctx.Err(); err != nil {
		res.Interrupted = true
		p.logger.Warn("ingestion interrupted",
			"error", err,
			"feeds_done", done,
			"ingested", res.Ingested,
			"failures", res.Failures)
		return res, nil
	}

	p.logger.Info("ingestion finished",
		"ingested", res.Ingested,
		"duplicates", res.Duplicates,
		"blacklisted", res.Blacklisted,
		"failures", res.Failures)
	return res, nil
}

func (p *Pipeline) ingestFeed(ctx context.Context, feed *database.Feed, blacklist registry.Blacklist, res *Result) {
	log := p.logger.With("feed", feed.Name)

	entries, err := p.feeds.Read(ctx, feed.URL)
	if err != nil {
		log.Error("feed fetch failed", "url", feed.URL, "error", err)
		res.Failures++
		return
	}

	added := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if kw, ok := blacklist.Matching(entry.Title); ok {
			log.Debug("skipped by blacklist", "title", entry.Title, "keyword", kw)
			res.Blacklisted++
			continue
		}

		link := p.resolver.Resolve(ctx, entry.Link)
		out, err := p.store.UpsertArticle(ctx, database.NewArticle{
			URL:       link,
			Title:     entry.Title,
			Source:    feed.Name,
			CreatedAt: entry.Published,
		})
		if err != nil {
			log.Error("failed to save article", "title", entry.Title, "url", link, "error", err)
			res.Failures++
			continue
		}
		if !out.Inserted {
			res.Duplicates++
			continue
		}
		res.Ingested++
		added++
	}

	log.Info("feed processed", "entries", len(entries), "added", added)
}

// AddShared stores a single URL submitted from outside the feeds. An empty
// title is derived from the page; when that fails the URL is the title.
func (p *Pipeline) AddShared(ctx context.Context, rawURL, title string) (database.UpsertResult, error) {
	link := strings.TrimSpace(rawURL)
	if !fetcher.IsHTTPURL(link) {
		return database.UpsertResult{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	link = p.resolver.Resolve(ctx, link)

	title = strings.TrimSpace(title)
	if title == "" {
		title = p.pageTitle(ctx, link)
	}
	if title == "" {
		title = link
	}

	res, err := p.store.UpsertArticle(ctx, database.NewArticle{
		URL:    link,
		Title:  title,
		Source: ShareSource,
	})
	if err != nil {
		return res, fmt.Errorf("failed to save shared article: %w", err)
	}
	p.logger.Info("shared article received", "url", link, "id", res.ID, "inserted", res.Inserted)
	return res, nil
}

func (p *Pipeline) pageTitle(ctx context.Context, link string) string {
	if p.pages == nil {
		return ""
	}
	page, err := p.pages.Fetch(ctx, link)
	if err != nil {
		p.logger.Warn("could not fetch shared page title", "url", link, "error", err)
		return ""
	}
	return fetcher.ExtractTitle(page.HTML, page.URL)
}
