// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"homewatch/internal/config"
)

// NewLogger creates a new logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithRun adds a batch run ID to the logger context.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithUser adds a user ID to the logger context.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

// WithArea adds a target area ID to the logger context.
func WithArea(logger zerolog.Logger, areaID string) zerolog.Logger {
	return logger.With().Str("area_id", areaID).Logger()
}

// LogReduction logs a detected price reduction.
func LogReduction(logger zerolog.Logger, listingID, areaID string, previous, current int64) {
	logger.Info().
		Str("event", "reduction").
		Str("listing_id", listingID).
		Str("area_id", areaID).
		Int64("previous_price", previous).
		Int64("new_price", current).
		Msg("Price reduction detected")
}

// LogAlertSaved logs a persisted alert.
func LogAlertSaved(logger zerolog.Logger, alertID, userID, listingID string) {
	logger.Info().
		Str("event", "alert").
		Str("alert_id", alertID).
		Str("user_id", userID).
		Str("listing_id", listingID).
		Msg("Alert saved")
}

// LogRunResult logs the aggregate counters of a completed batch run.
func LogRunResult(logger zerolog.Logger, users, areas, alerts, errCount int, duration time.Duration) {
	logger.Info().
		Str("event", "run_complete").
		Int("users_processed", users).
		Int("areas_monitored", areas).
		Int("alerts_generated", alerts).
		Int("errors", errCount).
		Dur("duration", duration).
		Msg("Batch run complete")
}
