package main

import (
	"fmt"
	"os"

	"estoque-backend/internal/config"
	"estoque-backend/internal/logging"
	"estoque-backend/internal/yieldstore"

	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	storePath string
)

var rootCmd = &cobra.Command{
	Use:           "yieldctl",
	Short:         "Deboning yield records and stock snapshot from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(cfg.LogLevel)
	},
}

func openStore() (*yieldstore.Store, error) {
	return yieldstore.Open(storePath)
}

func main() {
	cfg = config.LoadLocal()
	rootCmd.PersistentFlags().StringVar(&storePath, "store", cfg.YieldStorePath, "yield record CSV file")

	rootCmd.AddCommand(appendCmd(), listCmd(), reportCmd(), stockCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
