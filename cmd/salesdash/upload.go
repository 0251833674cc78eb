package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"salesdash/internal/api"
	"salesdash/internal/dashboard"
)

func (a *app) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.csv>",
		Short: "Upload a CSV of analyses to the backend",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runUpload,
	}
}

func (a *app) runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%s: %w", path, dashboard.ErrNotCSV)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	client, err := a.client()
	if err != nil {
		return err
	}

	result, err := client.UploadCSV(cmd.Context(), filepath.Base(path), file)
	if err != nil {
		return fmt.Errorf("upload failed: %s", api.Message(err))
	}

	a.logger.Debug().Str("file", path).Int("count", result.Count).Msg("upload complete")
	fmt.Fprintf(cmd.OutOrStdout(), "%d records uploaded successfully.\n", result.Count)
	return nil
}
