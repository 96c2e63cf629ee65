package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsrag/config"
	"github.com/mohammad-safakhou/newsrag/internal/logging"
)

func main() {
	if err := rootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "newsrag",
		Short:        "News question answering over freshly ingested articles",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches ./config and .)")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, logging.New(cfg.General.LogLevel, cfg.General.LogFormat), nil
	}

	root.AddCommand(serveCMD(load), ingestCMD(load), migrateCMD(load))
	return root
}

type loader func() (*config.Config, *slog.Logger, error)
