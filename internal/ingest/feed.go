package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/tkilaker/curator/internal/fetcher"
)

// Entry is a feed item reduced to what ingestion stores
type Entry struct {
	Title     string
	Link      string
	Published time.Time
}

// FeedReader fetches and parses one feed
type FeedReader interface {
	Read(ctx context.Context, feedURL string) ([]Entry, error)
}

// GoFeedReader reads RSS and Atom documents with gofeed
type GoFeedReader struct {
	parser *gofeed.Parser
}

// NewFeedReader builds a reader that fetches through client
func NewFeedReader(client *http.Client, userAgent string) *GoFeedReader {
	parser := gofeed.NewParser()
	parser.Client = client
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return &GoFeedReader{parser: parser}
}

// Read returns the entries of the feed at feedURL. Items without a title
// or a usable link are dropped here.
func (r *GoFeedReader) Read(ctx context.Context, feedURL string) ([]Entry, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entry, ok := toEntry(item)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toEntry(item *gofeed.Item) (Entry, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	// Some feeds only carry the permalink in the GUID.
	if link == "" && fetcher.IsHTTPURL(item.GUID) {
		link = strings.TrimSpace(item.GUID)
	}
	if title == "" || link == "" {
		return Entry{}, false
	}

	entry := Entry{Title: title, Link: link}
	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}
	return entry, true
}
