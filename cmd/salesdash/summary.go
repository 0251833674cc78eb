package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"salesdash/internal/format"
	"salesdash/internal/models"
)

func (a *app) summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the dashboard KPIs",
		Long: `Print the dashboard KPIs: total and net sales, average ad, refund and
discount ratios, and the change between the two most recent analyses.`,
		Args: cobra.NoArgs,
		RunE: a.runSummary,
	}
	addRangeFlags(cmd)
	return cmd
}

func (a *app) runSummary(cmd *cobra.Command, _ []string) error {
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

	printSummary(cmd.OutOrStdout(), a.cfg.Module, ctrl.Stats(), ctrl.StatsView())
	return nil
}

func printSummary(w io.Writer, module string, stats models.DashboardStats, view models.StatsView) {
	color.New(color.FgCyan).Add(color.Bold).Fprintf(w, "=== Sales Summary (%s) ===\n", module)
	fmt.Fprintf(w, "Period: %s\n\n", view.AnalysesInfo.Text)

	if stats.IsEmpty() {
		fmt.Fprintln(w, "No analyses found.")
		return
	}

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("METRIC", "VALUE", "CHANGE")
	t.AddLine("Total sales", view.TotalSales.Text, changeText(view.SalesChange))
	t.AddLine("Net sales", view.NetSales.Text, changeText(view.NetSalesChange))
	t.AddLine("Avg ad ratio", view.AvgAdRatio.Text, changeText(view.AdRatioChange))
	t.AddLine("Avg refund ratio", format.Percentage(stats.AvgRefundRatio), "")
	t.AddLine("Avg discount ratio", format.Percentage(stats.AvgDiscountRatio), "")
	t.AddLine("Analyses", view.TotalAnalyses.Text, "")
	t.Print()
}

// changeText colours a change card the way the page does
func changeText(card models.StatCard) string {
	switch {
	case strings.HasSuffix(card.Class, "positive"):
		return color.GreenString(card.Text)
	case strings.HasSuffix(card.Class, "negative"):
		return color.RedString(card.Text)
	}
	return card.Text
}
