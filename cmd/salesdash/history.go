package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"salesdash/internal/models"
)

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored analyses, newest first",
		Args:  cobra.NoArgs,
		RunE:  a.runHistory,
	}
	addRangeFlags(cmd)
	cmd.Flags().IntP("limit", "n", 0, "show at most this many analyses (0 for all)")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	ctrl, err := a.controller(cmd.Context(), client)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	from, to := rangeFlags(cmd)
	if err := applyRange(ctrl, from, to); err != nil {
		return err
	}

	rows := ctrl.TableRows()
	total := len(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := cmd.OutOrStdout()
	if total == 0 {
		fmt.Fprintln(out, "No analyses found.")
		return nil
	}
	printHistory(out, rows)
	fmt.Fprintf(out, "%d of %d analyses\n", len(rows), total)
	return nil
}

func printHistory(w io.Writer, rows []models.TableRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Period", "Sales", "Net sales", "Ad cost", "Ad ratio", "Refund ratio", "ID"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for _, row := range rows {
		table.Append([]string{
			row.Date,
			row.Period,
			row.SalesAmount,
			row.NetSales,
			row.AdCost,
			row.AdRatio,
			row.RefundRatio,
			row.ID,
		})
	}
	table.Render()
}
