package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appcontracts "github.com/bryanwahyu/contract-analysis/internal/application/contracts"
)

var detectFlags struct {
	url string
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the detected contract type of a PDF",
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectFlags.url, "url", "", "Fetchable PDF URL (required)")
	_ = detectCmd.MarkFlagRequired("url")
}

func runDetect(cmd *cobra.Command, _ []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	ct, err := svc.DetectType(cmd.Context(), appcontracts.DetectCommand{FileURL: detectFlags.url})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ct)
	return nil
}
