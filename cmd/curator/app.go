package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/tkilaker/curator/internal/classifier"
	"github.com/tkilaker/curator/internal/config"
	"github.com/tkilaker/curator/internal/database"
	"github.com/tkilaker/curator/internal/fetcher"
	"github.com/tkilaker/curator/internal/ingest"
	"github.com/tkilaker/curator/internal/logging"
	"github.com/tkilaker/curator/internal/registry"
)

// app holds the components shared by every command
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.DB
	registry *registry.Registry
	pipeline *ingest.Pipeline
	analyzer *classifier.Analyzer
	browser  *fetcher.BrowserFetcher
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("connected to database", "dialect", db.Dialect())

	a := &app{cfg: cfg, logger: logger, db: db}
	a.registry = registry.New(db, logger.With("component", "registry"))

	client := &http.Client{Timeout: cfg.FetchTimeout}

	var pages fetcher.Fetcher = fetcher.NewHTTPFetcher(client, fetcher.DefaultUserAgent)
	if cfg.BrowserFetch {
		browser, err := fetcher.NewBrowserFetcher(cfg.BrowserHeadless, cfg.BrowserProfileDir, 0)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.browser = browser
		pages = browser
		logger.Info("using headless browser for article pages", "headless", cfg.BrowserHeadless)
	}

	resolver := ingest.NewResolver(client, cfg.RedirectHosts, cfg.InterstitialHosts, cfg.FetchTimeout, logger.With("component", "resolver"))
	feeds := ingest.NewFeedReader(client, fetcher.DefaultUserAgent)
	a.pipeline = ingest.New(a.registry, db, feeds, resolver, pages, logger.With("component", "ingest"))

	var gen classifier.Generator
	if cfg.ClassifierEnabled() {
		gen = classifier.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEndpoint, nil)
	} else {
		logger.Warn("GEMINI_API_KEY not set, analysis disabled")
	}
	a.analyzer = classifier.NewAnalyzer(db, pages, gen, classifier.Options{
		Delay:        cfg.AnalyzeDelay,
		TextLimit:    cfg.ExtractLimit,
		StoreRawHTML: cfg.StoreRawHTML,
	}, logger.With("component", "classifier"))

	return a, nil
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("failed to close browser", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}

// runPass ingests all feeds then analyzes one batch when enabled
func (a *app) runPass(ctx context.Context) error {
	res, err := a.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("ingestion finished", "ingested", res.Ingested, "duplicates", res.Duplicates,
		"blacklisted", res.Blacklisted, "failures", res.Failures)

	if !a.analyzer.Enabled() || res.Interrupted {
		return nil
	}
	analyzed, err := a.analyzer.AnalyzeNext(ctx, a.cfg.AnalyzeBatchSize)
	if err != nil {
		return err
	}
	a.logger.Info("analysis finished", "analyzed", analyzed.Analyzed, "skipped", analyzed.Skipped,
		"failures", analyzed.Failures)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
