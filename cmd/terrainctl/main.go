package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/freeeve/terrainkit/internal/logger"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "terrainctl",
		Short:         "Offline map analysis and path queries",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.InitWith(logger.Options{Level: logLevel, Out: os.Stderr})
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(pathCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
