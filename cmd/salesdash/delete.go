package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"salesdash/internal/dashboard"
	"salesdash/internal/models"
)

var errNotInteractive = errors.New("stdin is not a terminal, pass --force to delete without confirmation")

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <analysis-id>",
		Short: "Delete a stored analysis",
		Long: `Delete a stored analysis from the backend.

The analysis is shown and confirmation is asked for unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runDelete,
	}

	cmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")

	return cmd
}

func (a *app) runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	client, err := a.client()
	if err != nil {
		return err
	}
	ctrl, err := a.controller(cmd.Context(), client)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	row, ok := findRow(ctrl.TableRows(), id)
	if !ok {
		return fmt.Errorf("%w: %s", dashboard.ErrUnknownRecord, id)
	}

	color.New(color.FgCyan).Add(color.Bold).Fprintln(out, "Delete analysis")
	fmt.Fprintf(out, "ID:      %s\n", row.ID)
	fmt.Fprintf(out, "Date:    %s\n", row.Date)
	fmt.Fprintf(out, "Period:  %s\n", row.Period)
	fmt.Fprintf(out, "Sales:   %s\n", row.SalesAmount)
	fmt.Fprintln(out)

	if !force {
		ok, err := confirm(cmd.InOrStdin(), out, "Are you sure you want to delete this analysis?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Operation canceled.")
			return nil
		}
	}

	if err := ctrl.DeleteRecord(cmd.Context(), id, true); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	fmt.Fprintln(out, color.GreenString("Analysis %s deleted.", id))
	return nil
}

func findRow(rows []models.TableRow, id string) (models.TableRow, bool) {
	for _, row := range rows {
		if row.ID == id {
			return row, true
		}
	}
	return models.TableRow{}, false
}

// confirm asks a y/N question. A real stdin that is not a terminal is refused
// so scripts cannot delete by accident.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return false, errNotInteractive
	}

	fmt.Fprintf(out, "%s (y/N): ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
