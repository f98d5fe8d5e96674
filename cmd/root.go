package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zakupai/supplier-search/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "supplier-search",
	Short: "Durable supplier-search queue and enrichment pipeline",
	Long:  "Plans search queries with Claude, searches Yandex, crawls candidate sites for contacts, validates companies, and persists suppliers per purchase.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
