package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataqa/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dataqa",
	Short: "Data quality audits for tabular file collections",
	Long:  "Ingests CSV/TSV/XLSX payloads and ZIP archives, resolves identifier columns, audits duplicate keys, reconciles identifiers across tables, and tracks fill-rate drift against earlier collections.",
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
