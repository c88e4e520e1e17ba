package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	config   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "contractctl",
	Short: "Analyze contract PDFs from the command line",
	Long:  "contractctl runs the contract analysis pipeline against the configured\ndatabase and AI backend, and inspects stored analyses.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.config, "config", "", "Path to config.yaml (default $CONFIG_PATH or ./config.yaml)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Override log.level from the config")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
