package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"salesdash/internal/dashboard"
)

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the analysis history as a spreadsheet",
		Long: `Download the analysis history as an xlsx spreadsheet.

By default the backend export is downloaded. With --filtered the workbook is
built locally from the analyses inside the --from/--to window.`,
		Args: cobra.NoArgs,
		RunE: a.runExport,
	}
	addRangeFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default: the name the backend suggests)")
	cmd.Flags().Bool("filtered", false, "build the workbook locally from the filtered analyses")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	filtered, _ := cmd.Flags().GetBool("filtered")

	client, err := a.client()
	if err != nil {
		return err
	}

	if filtered {
		return a.exportFiltered(cmd, client, output)
	}

	download, err := client.DownloadExport(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to download export: %w", err)
	}
	defer download.Body.Close()

	if output == "" {
		output = filepath.Base(download.Filename)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}

	bar := progressbar.NewOptions64(download.Size,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Downloading "+output),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
	)

	written, err := io.Copy(io.MultiWriter(file, bar), download.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(output)
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	_ = bar.Finish()

	a.logger.Debug().Str("file", output).Int64("bytes", written).Msg("export downloaded")
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", output, written)
	return nil
}

func (a *app) exportFiltered(cmd *cobra.Command, client dashboard.History, output string) error {
	ctrl, err := a.controller(cmd.Context(), client)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	from, to := rangeFlags(cmd)
	if err := applyRange(ctrl, from, to); err != nil {
		return err
	}

	if output == "" {
		output = dashboard.FilteredExportFilename
	}
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	err = ctrl.ExportFiltered(file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(output)
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d analyses)\n", output, len(ctrl.Records()))
	return nil
}
