package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"salesdash/internal/version"
)

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// needs no config or backend
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintln(out, info.String())
			if warning := info.Check(); warning != "" {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), warning)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print build information as JSON")
	return cmd
}
