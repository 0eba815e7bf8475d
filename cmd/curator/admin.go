package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkilaker/curator/internal/registry"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load feeds and blacklist keywords from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := registry.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.registry.Seed(ctx, seed)
			if err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			return printJSON(res)
		},
	}
}

// migrateCmd applies pending migrations, which opening the database does
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info("database schema is up to date", "dialect", a.db.Dialect())
			return nil
		},
	}
}
