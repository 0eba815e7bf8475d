// Package classifier scores, categorizes and summarizes stored articles
// with a generative-language model.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
)

const (
	DefaultBatchSize = 5
	DefaultDelay     = 6 * time.Second
	DefaultTextLimit = 12000
)

// Store is the part of the article store the analyzer needs
type Store interface {
	SelectUnanalyzedArticles(ctx context.Context, limit int, newestFirst bool) ([]*database.Article, error)
	GetArticleByID(ctx context.Context, id int64) (*database.Article, error)
	UpdateArticleAnalysis(ctx context.Context, update database.AnalysisUpdate, onlyIfUnanalyzed bool) (bool, error)
}

// Options tunes an Analyzer. Zero values use the defaults above, except
// Delay: zero means classifier calls are not spaced.
type Options struct {
	Model        string
	Delay        time.Duration
	TextLimit    int
	StoreRawHTML bool
	Now          func() time.Time
}

// Result summarizes one AnalyzeNext batch
type Result struct {
	Selected int `json:"selected"`
	Analyzed int `json:"analyzed"`
	Skipped  int `json:"skipped"`
	Failures int `json:"failures"`
	// Interrupted is set when the context ended before the batch completed
	Interrupted bool `json:"interrupted,omitempty"`
}

// Analyzer runs the classification pipeline
type Analyzer struct {
	store   Store
	pages   fetcher.Fetcher
	gen     Generator
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
}

// modelNamer is implemented by generators that know which model they call
type modelNamer interface {
	Model() string
}

// NewAnalyzer wires the pipeline. A nil generator leaves the analyzer
// disabled: every operation returns ErrDisabled. An empty Options.Model is
// taken from the generator when it reports one.
func NewAnalyzer(store Store, pages fetcher.Fetcher, gen Generator, opts Options, logger *slog.Logger) *Analyzer {
	if opts.Model == "" {
		if m, ok := gen.(modelNamer); ok {
			opts.Model = m.Model()
		}
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.TextLimit <= 0 {
		opts.TextLimit = DefaultTextLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}

	return &Analyzer{
		store:   store,
		pages:   pages,
		gen:     gen,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger,
	}
}

// Enabled reports whether a generator is configured
func (a *Analyzer) Enabled() bool {
	return a != nil && a.gen != nil
}

// AnalyzeNext classifies up to batchSize unanalyzed articles, newest first.
// Per-article failures are logged and leave the article for a later pass.
// When ctx ends mid-batch the counts so far are returned with Interrupted set.
func (a *Analyzer) AnalyzeNext(ctx context.Context, batchSize int) (Result, error) {
	var res Result
	if !a.Enabled() {
		return res, ErrDisabled
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	articles, err := a.store.SelectUnanalyzedArticles(ctx, batchSize, true)
	if err != nil {
		return res, fmt.Errorf("failed to select unanalyzed articles: %w", err)
	}
	res.Selected = len(articles)
	if len(articles) == 0 {
		a.logger.Info("nothing to analyze")
		return res, nil
	}

	for _, article := range articles {
		if ctx.Err() != nil {
			break
		}
		log := a.logger.With("article_id", article.ID)

		update, err := a.analyze(ctx, article)
		if err != nil {
			log.Warn("article skipped", "url", article.URL, "error", err)
			res.Skipped++
			continue
		}

		written, err := a.store.UpdateArticleAnalysis(ctx, update, true)
		if err != nil {
			log.Error("failed to save analysis", "error", err)
			res.Failures++
			continue
		}
		if !written {
			log.Info("analysis already written by another run")
			res.Skipped++
			continue
		}
		res.Analyzed++
		log.Info("article analyzed",
			"category", update.Category,
			"score", update.RelevanceScore,
			"access", update.AccessStatus)
	}

	if err := ctx.Err(); err != nil {
		res.Interrupted = true
		a.logger.Warn("analysis batch interrupted",
			"error", err,
			"selected", res.Selected,
			"analyzed", res.Analyzed,
			"skipped", res.Skipped)
		return res, nil
	}

	a.logger.Info("analysis batch finished",
		"selected", res.Selected,
		"analyzed", res.Analyzed,
		"skipped", res.Skipped,
		"failures", res.Failures)
	return res, nil
}

// Reanalyze classifies one article again and overwrites any previous result
func (a *Analyzer) Reanalyze(ctx context.Context, id int64) error {
	if !a.Enabled() {
		return ErrDisabled
	}

	article, err := a.store.GetArticleByID(ctx, id)
	if err != nil {
		return err
	}
	if article == nil {
		return database.ErrNotFound
	}

	update, err := a.analyze(ctx, article)
	if err != nil {
		return fmt.Errorf("failed to analyze article %d: %w", id, err)
	}
	if _, err := a.store.UpdateArticleAnalysis(ctx, update, false); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	a.logger.Info("article reanalyzed", "article_id", id, "category", update.Category, "score", update.RelevanceScore)
	return nil
}

func (a *Analyzer) analyze(ctx context.Context, article *database.Article) (database.AnalysisUpdate, error) {
	if a.pages == nil {
		return database.AnalysisUpdate{}, errors.New("no page fetcher configured")
	}
	page, err := a.pages.Fetch(ctx, article.URL)
	if err != nil {
		return database.AnalysisUpdate{}, err
	}

	text := fetcher.ExtractText(page.HTML, page.URL, a.opts.TextLimit)
	prompt := BuildPrompt(article.Title, article.URL, text)

	if err := a.limiter.Wait(ctx); err != nil {
		return database.AnalysisUpdate{}, err
	}
	response, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return database.AnalysisUpdate{}, err
	}

	analysis, err := ParseResponse(response)
	if err != nil {
		return database.AnalysisUpdate{}, err
	}
	norm := Normalize(analysis)

	blob, err := a.analysisBlob(analysis, norm)
	if err != nil {
		return database.AnalysisUpdate{}, err
	}

	update := database.AnalysisUpdate{
		ID:             article.ID,
		Category:       norm.Category,
		RelevanceScore: norm.RelevanceScore,
		AccessStatus:   norm.AccessStatus,
		Summary:        norm.Summary,
		AnalysisJSON:   blob,
	}
	if a.opts.StoreRawHTML {
		html := page.HTML
		update.RawHTML = &html
	}
	return update, nil
}

// analysisBlob keeps the raw classifier fields with the normalized
// category, the model and the analysis time.
func (a *Analyzer) analysisBlob(analysis Analysis, norm Normalized) (string, error) {
	blob := make(map[string]any, len(analysis.Raw)+3)
	for k, v := range analysis.Raw {
		blob[k] = v
	}
	blob["category"] = norm.Category
	blob["model"] = a.opts.Model
	blob["analyzed_at"] = a.opts.Now().UTC().Format(time.RFC3339)

	out, err := json.Marshal(blob)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis: %w", err)
	}
	return string(out), nil
}
