package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"homewatch/internal/cli"
	"homewatch/internal/config"
	"homewatch/internal/logging"
)

func main() {
	// Optional .env for local development; env vars override config files.
	_ = godotenv.Load()

	configDir := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configDir = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
