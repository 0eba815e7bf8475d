package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tkilaker/curator/internal/classifier"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch all active feeds once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Run(ctx)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			return printJSON(res)
		},
	}
}

func analyzeCmd() *cobra.Command {
	var batchFlag int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Classify the next batch of unanalyzed articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			batch := a.cfg.AnalyzeBatchSize
			if batchFlag > 0 {
				batch = batchFlag
			}
			res, err := a.analyzer.AnalyzeNext(ctx, batch)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			return printJSON(res)
		},
	}
	cmd.Flags().IntVar(&batchFlag, "batch", 0, "Articles to analyze (default ANALYZE_BATCH_SIZE)")
	return cmd
}

func reanalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze <id>",
		Short: "Classify one article again, overwriting its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid article id %q", args[0])
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.analyzer.Reanalyze(ctx, id); err != nil {
				if errors.Is(err, classifier.ErrDisabled) {
					return fmt.Errorf("set GEMINI_API_KEY to analyze articles: %w", err)
				}
				return fmt.Errorf("failed to reanalyze article %d: %w", id, err)
			}
			article, err := a.db.GetArticleByID(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(article)
		},
	}
}
