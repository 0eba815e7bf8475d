package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/config"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
	"github.com/tkilaker/curator/internal/ingest"
	"github.com/tkilaker/curator/internal/registry"
	"github.com/tkilaker/curator/internal/tasks"
)

type stubGenerator struct {
	calls atomic.Int32
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return `{"category":"Sponsoring","relevance_score":8,"access_status":"paywall","summary":"Un accord record."}`, nil
}

type testEnv struct {
	db     *database.DB
	reg    *registry.Registry
	server *Server
	tasks  *tasks.Queue
	site   *httptest.Server
}

// newTestEnv wires a server over an in-memory store. site serves an RSS feed
// at /feed.xml linking to two article pages.
func newTestEnv(t *testing.T, gen classifier.Generator, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var site *httptest.Server
	site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			pub := time.Now().Add(-time.Hour).Format(time.RFC1123Z)
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title>
<item><title>Club signs kit deal</title><link>%[1]s/a1</link><pubDate>%[2]s</pubDate></item>
<item><title>League sells media rights</title><link>%[1]s/a2</link><pubDate>%[2]s</pubDate></item>
</channel></rss>`, site.URL, pub)
		case "/stall":
			<-r.Context().Done()
		case "/a1", "/a2", "/shared":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title>Shared page title</title></head><body><article><p>Deal signed.</p></article></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)

	cfg := &config.Config{
		AnalyzeBatchSize: 5,
		FeedTitle:        "Curator",
		FeedLink:         "http://localhost",
		FeedDescription:  "Curated articles",
		FeedAuthor:       "Curator",
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	reg := registry.New(db, nil)
	pages := fetcher.NewHTTPFetcher(site.Client(), "")
	pipeline := ingest.New(reg, db, ingest.NewFeedReader(site.Client(), ""), nil, pages, nil)
	analyzer := classifier.NewAnalyzer(db, pages, gen, classifier.Options{}, nil)
	queue := tasks.NewQueue(4, time.Minute, nil)
	t.Cleanup(queue.Close)

	srv := New(Deps{DB: db, Registry: reg, Pipeline: pipeline, Analyzer: analyzer, Tasks: queue}, cfg, nil)
	return &testEnv{db: db, reg: reg, server: srv, tasks: queue, site: site}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doContext(t, context.Background(), method, path, body, headers...)
}

func (e *testEnv) doContext(t *testing.T, ctx context.Context, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(ctx, method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addArticle(t *testing.T, title string, score *int, read bool) int64 {
	t.Helper()
	ctx := context.Background()
	res, err := e.db.UpsertArticle(ctx, database.NewArticle{
		URL:       "https://www.example.com/" + url.PathEscape(title),
		Title:     title,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	if score != nil {
		_, err = e.db.UpdateArticleAnalysis(ctx, database.AnalysisUpdate{
			ID:             res.ID,
			Category:       "Sponsoring",
			RelevanceScore: *score,
			AccessStatus:   classifier.AccessFree,
			Summary:        "Résumé de " + title,
			AnalysisJSON:   "{}",
		}, true)
		require.NoError(t, err)
	}
	if read {
		_, err = e.db.SetReadState(ctx, []int64{res.ID}, true)
		require.NoError(t, err)
	}
	return res.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func listTitles(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var out struct {
		Data []struct {
			Title  string `json:"title"`
			Domain string `json:"domain"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	titles := make([]string, 0, len(out.Data))
	for _, a := range out.Data {
		titles = append(titles, a.Title)
	}
	return titles
}

func intPtr(n int) *int { return &n }

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthReportsUnreachableStore(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.db.Close())

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", rec.Body.String())
}

func TestCronSecret(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.CronSecret = "s3cret" })
	_, err := env.reg.AddFeed(context.Background(), "Test", env.site.URL+"/feed.xml", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/cron/ingest", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/cron/ingest", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cron/ingest", "", "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["ingested"])

	// A second pass only finds duplicates.
	rec = env.do(t, http.MethodGet, "/api/cron/ingest", "", "Authorization", "Bearer s3cret")
	body = decode(t, rec)
	assert.EqualValues(t, 0, body["ingested"])
	assert.EqualValues(t, 2, body["duplicates"])
}

func TestCronIngestsAndAnalyzes(t *testing.T) {
	gen := &stubGenerator{}
	env := newTestEnv(t, gen)
	_, err := env.reg.AddFeed(context.Background(), "Test", env.site.URL+"/feed.xml", "")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/cron", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["ingested"])
	assert.EqualValues(t, 2, body["analyzed"])
	assert.EqualValues(t, 2, gen.calls.Load())

	article, err := env.db.GetArticleByURL(context.Background(), env.site.URL+"/a1")
	require.NoError(t, err)
	require.NotNil(t, article.RelevanceScore)
	assert.Equal(t, 8, *article.RelevanceScore)
	assert.Equal(t, "paywall", *article.AccessStatus)
}

func TestIngestAnswersPartialCountsAfterDeadline(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_, err := env.reg.AddFeed(ctx, "Test", env.site.URL+"/feed.xml", "")
	require.NoError(t, err)
	_, err = env.reg.AddFeed(ctx, "Stalled", env.site.URL+"/stall", "")
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	rec := env.doContext(t, reqCtx, http.MethodPost, "/api/cron/ingest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["interrupted"])
	assert.EqualValues(t, 2, body["ingested"])
	assert.EqualValues(t, 1, body["failures"])

	article, err := env.db.GetArticleByURL(ctx, env.site.URL+"/a1")
	require.NoError(t, err)
	assert.NotNil(t, article)
}

func TestCronSkipsAnalysisAfterDeadline(t *testing.T) {
	gen := &stubGenerator{}
	env := newTestEnv(t, gen)
	ctx := context.Background()
	_, err := env.reg.AddFeed(ctx, "Test", env.site.URL+"/feed.xml", "")
	require.NoError(t, err)
	_, err = env.reg.AddFeed(ctx, "Stalled", env.site.URL+"/stall", "")
	require.NoError(t, err)

	reqCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	rec := env.doContext(t, reqCtx, http.MethodPost, "/api/cron", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["interrupted"])
	assert.EqualValues(t, 2, body["ingested"])
	assert.EqualValues(t, 0, body["analyzed"])
	assert.Nil(t, body["analysis_error"])
	assert.Zero(t, gen.calls.Load())
}

func TestCronWithoutClassifier(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/cron", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["ingested"])
	assert.EqualValues(t, 0, body["analyzed"])
}

func TestAnalyzeDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.addArticle(t, "Unscored", nil, false)

	rec := env.do(t, http.MethodPost, "/api/analyze", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/articles/%d/reanalyze", id), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})

	rec := env.do(t, http.MethodPost, "/api/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Nothing to analyze", decode(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/analyze?batch=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := env.db.UpsertArticle(context.Background(), database.NewArticle{
		URL: env.site.URL + "/a1", Title: "Club signs kit deal", CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/api/analyze?batch=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["analyzed"])
}

func TestAnalyzeAsyncTask(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{})
	_, err := env.db.UpsertArticle(context.Background(), database.NewArticle{
		URL: env.site.URL + "/a2", Title: "League sells media rights", CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/analyze?async=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	taskID, ok := body["task_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, taskID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := env.tasks.Wait(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, task.Status)

	rec = env.do(t, http.MethodGet, "/api/tasks/"+taskID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/tasks/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReanalyze(t *testing.T) {
	gen := &stubGenerator{}
	env := newTestEnv(t, gen)
	res, err := env.db.UpsertArticle(context.Background(), database.NewArticle{
		URL: env.site.URL + "/a1", Title: "Club signs kit deal", CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/articles/abc/reanalyze", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/articles/9999/reanalyze", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/articles/%d/reanalyze", res.ID), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := env.tasks.Wait(ctx, decode(t, rec)["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, task.Status)

	article, err := env.db.GetArticleByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.True(t, article.Analyzed())
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestShare(t *testing.T) {
	env := newTestEnv(t, nil)
	link := env.site.URL + "/shared"

	rec := env.do(t, http.MethodPost, "/api/share", `{"url":"`+link+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["inserted"])

	article, err := env.db.GetArticleByURL(context.Background(), link)
	require.NoError(t, err)
	require.NotNil(t, article)
	assert.Equal(t, "Shared page title", article.Title)
	assert.Equal(t, ingest.ShareSource, article.Source)

	rec = env.do(t, http.MethodPost, "/api/share", `{"text":"`+link+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["inserted"])

	form := url.Values{"url": {env.site.URL + "/a1"}, "title": {"Mon titre"}}.Encode()
	rec = env.do(t, http.MethodPost, "/api/share", form, "Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	form = url.Values{"url": {env.site.URL + "/a2"}}.Encode()
	rec = env.do(t, http.MethodPost, "/api/share", form,
		"Content-Type", "application/x-www-form-urlencoded", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["inserted"])

	rec = env.do(t, http.MethodPost, "/api/share", `{"title":"no link"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing url", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/share", `{"url":"ftp://example.com/file"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid url", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/share", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListArticles(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addArticle(t, "High", intPtr(8), false)
	env.addArticle(t, "Low", intPtr(3), false)
	env.addArticle(t, "Pending", nil, false)
	env.addArticle(t, "Archived", intPtr(9), true)

	rec := env.do(t, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"High", "Pending"}, listTitles(t, rec))

	rec = env.do(t, http.MethodGet, "/api/articles?minScore=0", "")
	assert.ElementsMatch(t, []string{"High", "Low", "Pending"}, listTitles(t, rec))

	rec = env.do(t, http.MethodGet, "/api/articles?minScore=0&includeRead=true", "")
	assert.ElementsMatch(t, []string{"High", "Low", "Pending", "Archived"}, listTitles(t, rec))

	// Out of range scores are clamped.
	rec = env.do(t, http.MethodGet, "/api/articles?minScore=42", "")
	assert.ElementsMatch(t, []string{"Pending"}, listTitles(t, rec))

	rec = env.do(t, http.MethodGet, "/api/articles?minScore=0&category=Golf", "")
	assert.Empty(t, listTitles(t, rec))

	rec = env.do(t, http.MethodGet, "/api/articles", "")
	assert.Contains(t, rec.Body.String(), `"domain":"example.com"`)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.addArticle(t, "Pending", nil, false)

	rec := env.do(t, http.MethodPost, "/api/articles/abc/mark-read", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/articles/9999/mark-read", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/articles/%d/mark-read", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, listTitles(t, env.do(t, http.MethodGet, "/api/articles", "")))

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/articles/%d/mark-unread", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Pending"}, listTitles(t, env.do(t, http.MethodGet, "/api/articles", "")))
}

func TestMarkReadBulk(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.addArticle(t, "A", nil, false)
	b := env.addArticle(t, "B", nil, false)
	env.addArticle(t, "C", nil, false)

	rec := env.do(t, http.MethodPost, "/api/articles/mark-read-bulk", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/articles/mark-read-bulk", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No ids provided", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/articles/mark-read-bulk", fmt.Sprintf(`{"ids":[%d,%d]}`, a, b))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["updated"])
	assert.Equal(t, []string{"C"}, listTitles(t, env.do(t, http.MethodGet, "/api/articles", "")))

	rec = env.do(t, http.MethodPost, "/api/articles/mark-read-bulk", fmt.Sprintf(`{"ids":[%d],"is_read":false}`, a))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"A", "C"}, listTitles(t, env.do(t, http.MethodGet, "/api/articles", "")))
}

func TestSetCategory(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.addArticle(t, "Scored", intPtr(7), false)
	path := fmt.Sprintf("/api/articles/%d/category", id)

	rec := env.do(t, http.MethodPost, path, `{"category":"Quidditch"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown category", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/articles/9999/category", `{"category":"Golf"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, path, `{"category":"athletisme"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Athlétisme", decode(t, rec)["category"])

	rec = env.do(t, http.MethodPost, path, url.Values{"category": {"Médias"}}.Encode(),
		"Content-Type", "application/x-www-form-urlencoded", "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)

	article, err := env.db.GetArticleByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Médias", *article.Category)
}

func TestNewsletter(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.addArticle(t, "First", intPtr(8), false)
	second := env.addArticle(t, "Second", intPtr(6), true)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/articles/newsletter?ids=%d,%d", second, first), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	text := rec.Body.String()
	assert.Less(t, strings.Index(text, "Second"), strings.Index(text, "First"))
	assert.Contains(t, text, "[example.com](https://www.example.com/Second)")

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/articles/newsletter?ids=%d&ids=%d", first, second), "")
	text = rec.Body.String()
	assert.Less(t, strings.Index(text, "First"), strings.Index(text, "Second"))

	rec = env.do(t, http.MethodGet, "/api/articles/newsletter?ids=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedsCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/feeds", `{"name":"Bad","url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/feeds", `{"name":"Buzz","url":"https://example.com/feed","category":"Sponsoring"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode(t, rec)["id"].(float64))

	form := url.Values{"name": {"Other"}, "url": {"https://example.org/rss"}}.Encode()
	rec = env.do(t, http.MethodPost, "/api/feeds", form, "Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/api/feeds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/feeds/%d", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	active, err := env.reg.ActiveFeeds(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)

	rec = env.do(t, http.MethodDelete, "/api/feeds/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/feeds/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlacklistCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/blacklist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"data":[]}`, strings.TrimSpace(rec.Body.String()))

	rec = env.do(t, http.MethodPost, "/api/blacklist", `{"keyword":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/blacklist", `{"keyword":"Betting"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode(t, rec)["id"].(float64))

	rec = env.do(t, http.MethodPost, "/api/blacklist", `{"keyword":" betting "}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Keyword already exists", decode(t, rec)["error"])

	bl, err := env.reg.Blacklist(context.Background())
	require.NoError(t, err)
	assert.True(t, bl.Match("Live betting tips"))
	assert.Equal(t, 1, bl.Len())

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/blacklist/%d", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/blacklist/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRSS(t *testing.T) {
	env := newTestEnv(t, nil)
	env.addArticle(t, "Analyzed deal", intPtr(8), true)
	env.addArticle(t, "Not analyzed yet", nil, false)
	env.addArticle(t, "Minor story", intPtr(2), false)

	rec := env.do(t, http.MethodGet, "/rss.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Curator</title>")
	assert.Contains(t, body, "Analyzed deal")
	assert.Contains(t, body, "[Sponsoring] Résumé de Analyzed deal")
	assert.NotContains(t, body, "Not analyzed yet")
	assert.NotContains(t, body, "Minor story")

	rec = env.do(t, http.MethodGet, "/rss.xml?minScore=0", "")
	assert.Contains(t, rec.Body.String(), "Minor story")
}

func TestDashboardPage(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.addArticle(t, "Kit <deal>", intPtr(8), false)
	env.addArticle(t, "Old news", intPtr(7), true)

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Kit &lt;deal&gt;")
	assert.NotContains(t, body, "Old news")
	assert.Contains(t, body, "Aujourd&#39;hui")
	assert.Contains(t, body, fmt.Sprintf(`hx-post="/api/articles/%d/mark-read"`, id))
	assert.Contains(t, body, fmt.Sprintf(`hx-post="/api/articles/%d/category"`, id))
	assert.Contains(t, body, `action="/api/articles/newsletter"`)

	rec = env.do(t, http.MethodGet, "/?view=archived&sort=score", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "Old news")
	assert.NotContains(t, body, "Kit &lt;deal&gt;")
	assert.Contains(t, body, "mark-unread")
}

func TestAdminAndSharePages(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.reg.AddFeed(context.Background(), "Sport Buzz", "https://example.com/feed", "")
	require.NoError(t, err)
	_, err = env.reg.AddKeyword(context.Background(), "casino")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sport Buzz")
	assert.Contains(t, rec.Body.String(), "casino")

	rec = env.do(t, http.MethodGet, "/share?title=A+%22quoted%22+title&text=https://example.com/x", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="https://example.com/x"`)
	assert.Contains(t, rec.Body.String(), `A &#34;quoted&#34; title`)
}

func TestDayHeading(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "Aujourd'hui", dayHeading(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Hier", dayHeading(now.Add(-20*time.Hour), now))
	assert.Equal(t, "vendredi 31 octobre", dayHeading(now.AddDate(0, 0, -3), now))
}

func TestDashboardGroups(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	at := func(id int64, ago time.Duration) *database.Article {
		return &database.Article{ID: id, CreatedAt: now.Add(-ago)}
	}
	articles := []*database.Article{at(1, time.Hour), at(2, 3*time.Hour), at(3, 20*time.Hour), at(4, 72*time.Hour)}

	groups := dashboardData{Articles: articles, Now: now}.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, "Aujourd'hui", groups[0].Heading)
	assert.Len(t, groups[0].Articles, 2)
	assert.Equal(t, "Hier", groups[1].Heading)
	assert.Equal(t, "vendredi 31 octobre", groups[2].Heading)

	byScore := dashboardData{Articles: articles, ByScore: true, Now: now}.Groups()
	require.Len(t, byScore, 1)
	assert.Empty(t, byScore[0].Heading)
	assert.Len(t, byScore[0].Articles, 4)

	assert.Empty(t, dashboardData{Now: now}.Groups())
}
