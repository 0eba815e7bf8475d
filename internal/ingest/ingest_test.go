package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
	"github.com/tkilaker/curator/internal/registry"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test</title>
%s
</channel></rss>`

func rssItem(title, link, pubDate string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`, title, link, pubDate)
}

func feedServer(t *testing.T, items ...string) *httptest.Server {
	t.Helper()
	body := fmt.Sprintf(rssTemplate, joinItems(items))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func joinItems(items []string) string {
	out := ""
	for _, it := range items {
		out += it + "\n"
	}
	return out
}

type fixture struct {
	db  *database.DB
	reg *registry.Registry
}

func newFixture(t *testing.T, keywords ...string) *fixture {
	t.Helper()
	db, err := database.Open(context.Background(), database.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.New(db, nil)
	for _, kw := range keywords {
		_, err := reg.AddKeyword(context.Background(), kw)
		require.NoError(t, err)
	}
	return &fixture{db: db, reg: reg}
}

func (f *fixture) addFeed(t *testing.T, name, feedURL string) {
	t.Helper()
	_, err := f.reg.AddFeed(context.Background(), name, feedURL, "")
	require.NoError(t, err)
}

func (f *fixture) pipeline(resolver *Resolver, pages fetcher.Fetcher) *Pipeline {
	return New(f.reg, f.db, NewFeedReader(&http.Client{Timeout: 2 * time.Second}, "test"), resolver, pages, nil)
}

func TestRunInsertsAndFiltersByBlacklist(t *testing.T) {
	fx := newFixture(t, "betting")
	server := feedServer(t,
		rssItem("Nike signs new sponsorship deal", "https://example.com/a", "Mon, 06 Oct 2025 08:30:00 GMT"),
		rssItem("Live betting highlights recap", "https://example.com/b", "Mon, 06 Oct 2025 09:00:00 GMT"),
	)
	fx.addFeed(t, "Business feed", server.URL)

	ctx := context.Background()
	res, err := fx.pipeline(nil, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Blacklisted)
	assert.Zero(t, res.Failures)

	a, err := fx.db.GetArticleByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Nike signs new sponsorship deal", a.Title)
	assert.Equal(t, "Business feed", a.Source)
	assert.False(t, a.IsRead)
	assert.Nil(t, a.AnalysisJSON)
	assert.True(t, a.CreatedAt.Equal(time.Date(2025, 10, 6, 8, 30, 0, 0, time.UTC)))

	b, err := fx.db.GetArticleByURL(ctx, "https://example.com/b")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	server := feedServer(t, rssItem("Club renews kit deal", "https://example.com/kit", ""))
	fx.addFeed(t, "Feed", server.URL)

	p := fx.pipeline(nil, nil)
	ctx := context.Background()

	first, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Ingested)

	second, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Ingested)
	assert.Equal(t, 1, second.Duplicates)

	articles, err := fx.db.ListArticles(ctx, database.ArticleFilter{IncludeRead: true})
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestRunIsolatesFeedFailures(t *testing.T) {
	fx := newFixture(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer garbage.Close()
	good := feedServer(t, rssItem("Stadium naming rights sold", "https://example.com/arena", ""))

	fx.addFeed(t, "Broken", broken.URL)
	fx.addFeed(t, "Garbage", garbage.URL)
	fx.addFeed(t, "Good", good.URL)

	res, err := fx.pipeline(nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 2, res.Failures)
}

// stallingServer holds every request open until the client gives up
func stallingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server
}

func TestRunReturnsPartialCountsWhenContextEnds(t *testing.T) {
	fx := newFixture(t)
	good := feedServer(t, rssItem("Kit deal signed", "https://example.com/kit", ""))
	fx.addFeed(t, "Good", good.URL)
	fx.addFeed(t, "Stalled", stallingServer(t).URL)
	fx.addFeed(t, "Never reached", good.URL+"/other")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	res, err := fx.pipeline(nil, nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.Failures)

	a, err := fx.db.GetArticleByURL(context.Background(), "https://example.com/kit")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "Good", a.Source)
}

func TestRunNotInterruptedOnSuccess(t *testing.T) {
	fx := newFixture(t)
	server := feedServer(t, rssItem("Kit deal signed", "https://example.com/kit", ""))
	fx.addFeed(t, "Feed", server.URL)

	res, err := fx.pipeline(nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Interrupted)
}

type failingStore struct{ calls int }

func (s *failingStore) UpsertArticle(ctx context.Context, a database.NewArticle) (database.UpsertResult, error) {
	s.calls++
	return database.UpsertResult{}, errors.New("write failed")
}

func TestRunCountsStoreFailuresAndContinues(t *testing.T) {
	fx := newFixture(t)
	server := feedServer(t,
		rssItem("One", "https://example.com/1", ""),
		rssItem("Two", "https://example.com/2", ""),
	)
	fx.addFeed(t, "Feed", server.URL)

	store := &failingStore{}
	p := New(fx.reg, store, NewFeedReader(nil, ""), nil, nil, nil)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	assert.Equal(t, 2, res.Failures)
	assert.Zero(t, res.Ingested)
}

type brokenSources struct{}

func (brokenSources) ActiveFeeds(context.Context) ([]*database.Feed, error) {
	return nil, errors.New("connection refused")
}

func (brokenSources) Blacklist(context.Context) (registry.Blacklist, error) {
	return registry.Blacklist{}, nil
}

func TestRunFailsWhenStoreUnreachable(t *testing.T) {
	p := New(brokenSources{}, &failingStore{}, NewFeedReader(nil, ""), nil, nil, nil)
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestToEntry(t *testing.T) {
	published := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := published.Add(time.Hour)

	tests := []struct {
		name string
		item *gofeed.Item
		want Entry
		ok   bool
	}{
		{
			name: "link and published date",
			item: &gofeed.Item{Title: " Deal ", Link: "https://example.com/x", PublishedParsed: &published, UpdatedParsed: &updated},
			want: Entry{Title: "Deal", Link: "https://example.com/x", Published: published},
			ok:   true,
		},
		{
			name: "guid fallback with updated date",
			item: &gofeed.Item{Title: "Deal", GUID: "https://example.com/guid", UpdatedParsed: &updated},
			want: Entry{Title: "Deal", Link: "https://example.com/guid", Published: updated},
			ok:   true,
		},
		{
			name: "non-url guid is not a link",
			item: &gofeed.Item{Title: "Deal", GUID: "tag:example.com,2025:1"},
			ok:   false,
		},
		{
			name: "missing title",
			item: &gofeed.Item{Link: "https://example.com/x"},
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toEntry(tt.item)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestResolverFollowsRedirects(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>article</html>"))
	}))
	defer dest.Close()
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
		http.Redirect(w, r, dest.URL+"/story", http.StatusFound)
	}))
	defer redirector.Close()

	r := NewResolver(nil, []string{hostOf(t, redirector.URL)}, DefaultInterstitialHosts, time.Second, nil)
	assert.Equal(t, dest.URL+"/story", r.Resolve(context.Background(), redirector.URL+"/rss/articles/abc"))

	// Links on other hosts are untouched.
	assert.Equal(t, "https://example.com/a", r.Resolve(context.Background(), "https://example.com/a"))
}

func TestResolverFallsBackToOriginal(t *testing.T) {
	consent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("please consent"))
	}))
	defer consent.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/consent":
			http.Redirect(w, r, consent.URL+"/ml?continue=x", http.StatusFound)
		case "/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}
	}))
	defer redirector.Close()

	r := NewResolver(nil,
		[]string{hostOf(t, redirector.URL)},
		[]string{hostOf(t, consent.URL)},
		100*time.Millisecond, nil)
	ctx := context.Background()

	link := redirector.URL + "/consent"
	assert.Equal(t, link, r.Resolve(ctx, link))

	link = redirector.URL + "/slow"
	assert.Equal(t, link, r.Resolve(ctx, link))

	var none *Resolver
	assert.Equal(t, link, none.Resolve(ctx, link))
}

func TestRunStoresResolvedURL(t *testing.T) {
	fx := newFixture(t)
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer dest.Close()
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dest.URL+"/final", http.StatusMovedPermanently)
	}))
	defer redirector.Close()

	server := feedServer(t, rssItem("Wrapped link", redirector.URL+"/rss/articles/1", ""))
	fx.addFeed(t, "Google News - Sponsoring", server.URL)

	resolver := NewResolver(nil, []string{hostOf(t, redirector.URL)}, nil, time.Second, nil)
	res, err := fx.pipeline(resolver, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)

	a, err := fx.db.GetArticleByURL(context.Background(), dest.URL+"/final")
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestAddShared(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Esports team lands energy drink sponsor</title></head></html>`))
	}))
	defer pages.Close()

	fx := newFixture(t)
	p := fx.pipeline(nil, fetcher.NewHTTPFetcher(pages.Client(), ""))
	ctx := context.Background()

	t.Run("title from page", func(t *testing.T) {
		res, err := p.AddShared(ctx, pages.URL+"/c", "")
		require.NoError(t, err)
		assert.True(t, res.Inserted)

		a, err := fx.db.GetArticleByID(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, "Esports team lands energy drink sponsor", a.Title)
		assert.Equal(t, ShareSource, a.Source)
	})

	t.Run("url as title when page unavailable", func(t *testing.T) {
		link := pages.URL + "/missing"
		res, err := p.AddShared(ctx, link, "  ")
		require.NoError(t, err)

		a, err := fx.db.GetArticleByID(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, link, a.Title)
	})

	t.Run("given title and duplicate", func(t *testing.T) {
		first, err := p.AddShared(ctx, "https://example.com/c", "Given title")
		require.NoError(t, err)
		assert.True(t, first.Inserted)

		second, err := p.AddShared(ctx, "https://example.com/c", "Other title")
		require.NoError(t, err)
		assert.False(t, second.Inserted)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("invalid url", func(t *testing.T) {
		for _, raw := range []string{"", "example.com/c", "ftp://example.com/c", "https://"} {
			_, err := p.AddShared(ctx, raw, "")
			assert.ErrorIs(t, err, ErrInvalidURL, raw)
		}
	})

	t.Run("no fetcher", func(t *testing.T) {
		res, err := fx.pipeline(nil, nil).AddShared(ctx, "https://example.com/d", "")
		require.NoError(t, err)
		a, err := fx.db.GetArticleByID(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/d", a.Title)
	})
}
