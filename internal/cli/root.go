// Package cli provides the command-line interface for the monitoring application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"homewatch/internal/config"
	"homewatch/internal/health"
	"homewatch/internal/logging"
	"homewatch/internal/provider"
	"homewatch/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Provider provider.ListingProvider
	Probe    *health.Probe
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		Probe:  health.NewProbe(),
	}

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, most commands will be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	app.Provider = provider.NewHTTPProvider(cfg.Provider)

	rootCmd := &cobra.Command{
		Use:   "homewatch",
		Short: "homewatch - real-estate price reduction monitor",
		Long: `homewatch periodically scans user-defined target areas for price
reductions on property listings and records per-user alerts when a
reduction is detected.

Use 'homewatch run' for a single batch run or 'homewatch daemon' to run
on a fixed interval.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/homewatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newDaemonCmd(app))
	rootCmd.AddCommand(newAlertsCmd(app))
	rootCmd.AddCommand(newSettingsCmd(app))
	rootCmd.AddCommand(newHealthCmd(app))

	return rootCmd
}
