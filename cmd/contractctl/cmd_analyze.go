package main

import (
	"github.com/spf13/cobra"

	appcontracts "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
	"github.com/bryanwahyu/contract-analysis/internal/middleware"
)

var analyzeFlags struct {
	url          string
	user         string
	contractType string
	fileName     string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full pipeline on a PDF URL and store the result",
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.url, "url", "", "Fetchable PDF URL (required)")
	f.StringVar(&analyzeFlags.user, "user", "", "Owner user id (required)")
	f.StringVar(&analyzeFlags.contractType, "type", "", "Contract type; detected when omitted")
	f.StringVar(&analyzeFlags.fileName, "file-name", "", "Display name for the attachment")

	_ = analyzeCmd.MarkFlagRequired("url")
	_ = analyzeCmd.MarkFlagRequired("user")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if err := middleware.ValidateContractType(analyzeFlags.contractType); err != nil {
		return err
	}
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := svc.Analyze(cmd.Context(), appcontracts.AnalyzeCommand{
		FileURL:      analyzeFlags.url,
		FileName:     analyzeFlags.fileName,
		UserID:       analyzeFlags.user,
		ContractType: analyzeFlags.contractType,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}
