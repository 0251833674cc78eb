// Command salesdash serves the sales analysis dashboard and exposes the same
// operations from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesdash/internal/api"
	"salesdash/internal/config"
	"salesdash/internal/dashboard"
)

// app is the state shared by every subcommand, filled in by initConfig
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "salesdash",
		Short: "Sales analysis dashboard",
		Long: `salesdash reads sales analyses from the calculator backend and presents
them as KPI cards, charts and a record table, either in the browser (serve)
or directly in the terminal.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./salesdash.yaml or $HOME/.config/salesdash/salesdash.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("backend-url", "", "base URL of the analysis backend")
	flags.String("module", "", "backend module whose history is shown")
	flags.String("timezone", "", "timezone for timestamps and date filters")

	// Bind flags to viper
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("backend_url", flags.Lookup("backend-url"))
	_ = a.v.BindPFlag("module", flags.Lookup("module"))
	_ = a.v.BindPFlag("timezone", flags.Lookup("timezone"))

	// Add commands
	root.AddCommand(a.serveCmd())
	root.AddCommand(a.summaryCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(a.uploadCmd())
	root.AddCommand(a.deleteCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(a.storageCmd())
	root.AddCommand(versionCmd())

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	config.SetDefaults(a.v)

	// Set up config file
	if a.cfgFile != "" {
		path := config.ExpandPath(a.cfgFile)
		// an explicit file must exist
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		a.v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "salesdash"))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("salesdash")
		a.v.SetConfigType("yaml")
	}

	config.ConfigureEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults and environment apply
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logger = logger
	if a.v.ConfigFileUsed() != "" {
		logger.Debug().Str("file", a.v.ConfigFileUsed()).Msg("loaded config")
	}

	cmd.SetContext(logger.WithContext(contextOf(cmd)))
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger builds the root logger. Console output is meant for people, json
// for log collectors.
func newLogger(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.Format {
	case "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	case "json":
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// client returns an API client for the configured backend
func (a *app) client() (*api.Client, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	return api.New(a.cfg.BackendURL,
		api.WithTimeout(a.cfg.RequestTimeout),
		api.WithLocation(loc),
		api.WithLogger(a.logger),
	), nil
}

// controller returns a loaded controller without a preference store, for the
// one-shot terminal commands. The caller must Close it.
func (a *app) controller(ctx context.Context, client dashboard.History) (*dashboard.Controller, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	ctrl := dashboard.New(client, dashboard.Options{
		Module:     a.cfg.Module,
		EditorPath: a.cfg.EditorPath,
		Location:   loc,
		Logger:     a.logger,
	})
	if err := ctrl.Init(ctx); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return ctrl, nil
}

// applyRange narrows ctrl to the --from/--to window when either is set
func applyRange(ctrl *dashboard.Controller, from, to string) error {
	if from == "" && to == "" {
		return nil
	}
	if _, err := ctrl.ApplyFilterValues(from, to); err != nil {
		return fmt.Errorf("invalid date range: %w", err)
	}
	return nil
}

// addRangeFlags registers the --from/--to date window flags
func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day to include (YYYY-MM-DD)")
}

func rangeFlags(cmd *cobra.Command) (string, string) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return from, to
}
