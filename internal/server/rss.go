package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/tkilaker/curator/internal/config"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/newsletter"
)

// GenerateRSSFeed creates an RSS feed from analyzed articles
func GenerateRSSFeed(articles []*database.Article, cfg *config.Config) (string, error) {
	now := time.Now()

	feed := &feeds.Feed{
		Title:       cfg.FeedTitle,
		Link:        &feeds.Link{Href: cfg.FeedLink},
		Description: cfg.FeedDescription,
		Author:      &feeds.Author{Name: cfg.FeedAuthor},
		Created:     now,
	}

	// Convert articles to feed items
	feed.Items = make([]*feeds.Item, 0, len(articles))
	for _, article := range articles {
		item := &feeds.Item{
			Title:   article.Title,
			Link:    &feeds.Link{Href: article.URL},
			Id:      article.URL,
			Created: article.CreatedAt,
		}

		source := article.Source
		if source == "" {
			source = newsletter.Domain(article.URL)
		}
		item.Author = &feeds.Author{Name: source}

		if article.Summary != nil {
			item.Description = *article.Summary
		}
		if article.Category != nil {
			item.Description = fmt.Sprintf("[%s] %s", *article.Category, item.Description)
		}

		feed.Items = append(feed.Items, item)
	}

	// Generate RSS 2.0 format
	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}

	return rss, nil
}

// handleRSS serves the analyzed articles of the last 30 days, honoring
// the same minScore parameter as the API.
func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := listFilter(r)
	filter.IncludeRead = true
	filter.AnalyzedOnly = true
	filter.Since = time.Now().AddDate(0, 0, -30)
	filter.Limit = 50

	articles, err := s.db.ListArticles(ctx, filter)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch articles: %v", err), http.StatusInternalServerError)
		return
	}

	feed, err := GenerateRSSFeed(articles, s.config)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate feed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(feed))
}
