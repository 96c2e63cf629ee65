package main

import (
	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/newsrag/internal/server"
)

func migrateCMD(load loader) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the pgvector schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := srv.CheckMigrationTarget(cfg.Index.Collection, cfg.Embedding.Dimensions); err != nil {
				return err
			}
			if err := srv.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps); err != nil {
				return err
			}
			logger.Info("migrations applied", "direction", direction, "steps", steps)
			return nil
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", srv.DefaultMigrationsDir, "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
