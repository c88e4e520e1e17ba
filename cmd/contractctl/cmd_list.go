package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/contract-analysis/internal/domain/contracts"
)

var listFlags struct {
	user     string
	page     int
	pageSize int
	asJSON   bool
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses, newest first",
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.user, "user", "", "Only this owner's analyses")
	f.IntVar(&listFlags.page, "page", 1, "Page number")
	f.IntVar(&listFlags.pageSize, "page-size", 20, "Rows per page")
	f.BoolVar(&listFlags.asJSON, "json", false, "Print JSON instead of a table")
}

func runList(cmd *cobra.Command, _ []string) error {
	svc, closeFn, err := openService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	var rows []*contracts.OwnedAnalysis
	if listFlags.user != "" {
		recs, err := svc.ListByOwner(cmd.Context(), listFlags.user, listFlags.page, listFlags.pageSize)
		if err != nil {
			return err
		}
		for _, r := range recs {
			rows = append(rows, &contracts.OwnedAnalysis{ContractAnalysis: *r})
		}
	} else {
		rows, err = svc.ListAll(cmd.Context(), listFlags.page, listFlags.pageSize)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if listFlags.asJSON {
		if rows == nil {
			rows = []*contracts.OwnedAnalysis{}
		}
		return printJSON(out, rows)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tOWNER\tTYPE\tSCORE")
	for _, r := range rows {
		owner := r.UserID
		if r.UserName != "" {
			owner = r.UserName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), owner, r.ContractType, r.OverallScore)
	}
	return tw.Flush()
}
