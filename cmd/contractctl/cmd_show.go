package main

import (
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

var showFlags struct {
	id string
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a stored analysis",
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFlags.id, "id", "", "Analysis id (required)")
	_ = showCmd.MarkFlagRequired("id")
}

func runShow(cmd *cobra.Command, _ []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := svc.Get(cmd.Context(), contracts.AnalysisID(showFlags.id))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}
