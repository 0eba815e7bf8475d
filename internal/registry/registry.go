// Package registry owns the configured feed sources and the title blacklist.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
)

// DefaultKeywords is the blacklist a fresh install starts with
var DefaultKeywords = []string{"betting", "casino", "highlights", "recap", "live blog"}

// ErrInvalid marks input rejected before reaching the store
var ErrInvalid = errors.New("invalid input")

// Store is the part of the article store the registry needs
type Store interface {
	ListActiveFeeds(ctx context.Context) ([]*database.Feed, error)
	ListFeeds(ctx context.Context) ([]*database.Feed, error)
	AddFeed(ctx context.Context, name, url string, category *string) (*database.Feed, error)
	DeactivateFeed(ctx context.Context, id int64) error
	ListBlacklist(ctx context.Context) ([]*database.BlacklistKeyword, error)
	ListBlacklistKeywords(ctx context.Context) ([]string, error)
	AddBlacklistKeyword(ctx context.Context, keyword string) (*database.BlacklistKeyword, error)
	DeleteBlacklistKeyword(ctx context.Context, id int64) error
}

// Registry is the read/write surface over feeds and blacklist keywords
type Registry struct {
	store  Store
	logger *slog.Logger
}

// New creates a registry backed by store
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

// ActiveFeeds returns the feeds ingestion should poll
func (r *Registry) ActiveFeeds(ctx context.Context) ([]*database.Feed, error) {
	return r.store.ListActiveFeeds(ctx)
}

// ListFeeds returns all feeds for the admin view
func (r *Registry) ListFeeds(ctx context.Context) ([]*database.Feed, error) {
	return r.store.ListFeeds(ctx)
}

// AddFeed validates and stores a feed source
func (r *Registry) AddFeed(ctx context.Context, name, feedURL, category string) (*database.Feed, error) {
	name = strings.TrimSpace(name)
	feedURL = strings.TrimSpace(feedURL)
	if !fetcher.IsHTTPURL(feedURL) {
		return nil, fmt.Errorf("%w: feed url %q must be an absolute http(s) URL", ErrInvalid, feedURL)
	}
	if name == "" {
		name = feedURL
	}

	var cat *string
	if c := strings.TrimSpace(category); c != "" {
		cat = &c
	}

	feed, err := r.store.AddFeed(ctx, name, feedURL, cat)
	if err != nil {
		return nil, err
	}
	r.logger.Info("feed added", "id", feed.ID, "name", feed.Name, "url", feed.URL)
	return feed, nil
}

// DeactivateFeed stops ingestion from polling the feed
func (r *Registry) DeactivateFeed(ctx context.Context, id int64) error {
	if err := r.store.DeactivateFeed(ctx, id); err != nil {
		return err
	}
	r.logger.Info("feed deactivated", "id", id)
	return nil
}

// Blacklist loads the current keyword set as a matcher
func (r *Registry) Blacklist(ctx context.Context) (Blacklist, error) {
	keywords, err := r.store.ListBlacklistKeywords(ctx)
	if err != nil {
		return Blacklist{}, err
	}
	return NewBlacklist(keywords), nil
}

// ListKeywords returns the blacklist rows for the admin view
func (r *Registry) ListKeywords(ctx context.Context) ([]*database.BlacklistKeyword, error) {
	return r.store.ListBlacklist(ctx)
}

// AddKeyword stores a trimmed, non-empty keyword
func (r *Registry) AddKeyword(ctx context.Context, keyword string) (*database.BlacklistKeyword, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is empty", ErrInvalid)
	}
	kw, err := r.store.AddBlacklistKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}
	r.logger.Info("blacklist keyword added", "id", kw.ID, "keyword", kw.Keyword)
	return kw, nil
}

// DeleteKeyword removes a keyword by ID
func (r *Registry) DeleteKeyword(ctx context.Context, id int64) error {
	if err := r.store.DeleteBlacklistKeyword(ctx, id); err != nil {
		return err
	}
	r.logger.Info("blacklist keyword deleted", "id", id)
	return nil
}

// SeedFile is the YAML document accepted by Seed
type SeedFile struct {
	Feeds []struct {
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Category string `yaml:"category"`
	} `yaml:"feeds"`
	Blacklist []string `yaml:"blacklist"`
}

// LoadSeedFile reads a seed document from disk
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// SeedResult counts what Seed changed
type SeedResult struct {
	Feeds    int `json:"feeds"`
	Keywords int `json:"keywords"`
}

// Seed adds the feeds and keywords in seed. Keywords already present
// (case-insensitively) are skipped; feeds are upserted by URL. An empty
// blacklist section falls back to DefaultKeywords when the store has none.
func (r *Registry) Seed(ctx context.Context, seed *SeedFile) (SeedResult, error) {
	var res SeedResult

	for _, f := range seed.Feeds {
		if _, err := r.AddFeed(ctx, f.Name, f.URL, f.Category); err != nil {
			return res, fmt.Errorf("seed feed %q: %w", f.URL, err)
		}
		res.Feeds++
	}

	existing, err := r.store.ListBlacklistKeywords(ctx)
	if err != nil {
		return res, err
	}
	keywords := seed.Blacklist
	if len(keywords) == 0 && len(existing) == 0 {
		keywords = DefaultKeywords
	}

	have := make(map[string]bool, len(existing))
	for _, kw := range existing {
		have[strings.ToLower(kw)] = true
	}
	for _, kw := range keywords {
		key := strings.ToLower(strings.TrimSpace(kw))
		if key == "" || have[key] {
			continue
		}
		_, err := r.AddKeyword(ctx, kw)
		if errors.Is(err, database.ErrConflict) {
			have[key] = true
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed keyword %q: %w", kw, err)
		}
		have[key] = true
		res.Keywords++
	}

	return res, nil
}
