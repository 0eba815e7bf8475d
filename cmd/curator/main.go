package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "curator",
		Short:        "curator - sports and esports business news curation",
		Long:         "Ingests RSS feeds, classifies articles with Gemini and serves a curation dashboard, a JSON API and an RSS export.",
		SilenceUsage: true,
	}

	root.AddCommand(
		serveCmd(),
		ingestCmd(),
		analyzeCmd(),
		reanalyzeCmd(),
		seedCmd(),
		migrateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
