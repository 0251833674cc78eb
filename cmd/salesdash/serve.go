package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"salesdash/internal/dashboard"
	"salesdash/internal/server"
	"salesdash/internal/storage"
	"salesdash/internal/templates"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server",
		Long: `Run the dashboard web server.

The first page load fetches the analysis history from the backend, so the
server starts even when the backend is not reachable yet.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Bool("debug", false, "reload templates from disk on every request")
	cmd.Flags().String("templates", "", "template directory used instead of the embedded templates")
	_ = a.v.BindPFlag("listen_addr", cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	store, err := storage.New(cfg.DataDirectory, storage.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}
	if cfg.StoragePassphrase != "" {
		if err := store.UsePassphrase(cfg.StoragePassphrase); err != nil {
			return fmt.Errorf("failed to unlock preference store: %w", err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}

	ctrl := dashboard.New(client, dashboard.Options{
		Module:      cfg.Module,
		EditorPath:  cfg.EditorPath,
		Location:    loc,
		Logger:      a.logger,
		Preferences: store,
	})
	defer ctrl.Close()

	templateDir, _ := cmd.Flags().GetString("templates")
	renderer, err := templates.New(templates.Options{
		Dir:    templateDir,
		Debug:  cfg.Debug,
		Logger: a.logger,
	})
	if err != nil {
		// pages degrade to a placeholder, the JSON routes keep working
		a.logger.Warn().Err(err).Msg("could not load templates")
		renderer = nil
	}

	a.logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("backend", cfg.BackendURL).
		Str("module", cfg.Module).
		Str("data_dir", cfg.DataDirectory).
		Bool("encrypted", store.IsEncrypted()).
		Msg("starting sales dashboard")

	srv := server.New(a.logger, server.Config{
		Addr:            cfg.ListenAddr,
		EditorPath:      cfg.EditorPath,
		ShutdownTimeout: server.DefaultShutdownTimeout,
		Dependencies: server.Dependencies{
			Controller: ctrl,
			Renderer:   renderer,
			Static:     templates.Static(),
		},
	})
	return srv.Start(ctx)
}
