// Package batch runs the full monitoring pipeline across all eligible users.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"homewatch/internal/alert"
	apperrors "homewatch/internal/errors"
	"homewatch/internal/logging"
	"homewatch/internal/models"
	"homewatch/internal/monitor"
	"homewatch/internal/store"
)

// ProcessingResult holds the aggregate counters of one batch run.
type ProcessingResult struct {
	RunID                string        `json:"run_id"`
	UsersProcessed       int           `json:"users_processed"`
	TargetAreasMonitored int           `json:"target_areas_monitored"`
	AlertsGenerated      int           `json:"alerts_generated"`
	Errors               []string      `json:"errors"`
	Duration             time.Duration `json:"-"`
}

// MarshalJSON renders the duration as a human-readable string instead of
// raw nanoseconds.
func (r ProcessingResult) MarshalJSON() ([]byte, error) {
	type plain ProcessingResult
	return json.Marshal(struct {
		plain
		Duration string `json:"duration"`
	}{plain(r), r.Duration.Round(time.Millisecond).String()})
}

// Options configures an Orchestrator.
type Options struct {
	// Concurrency bounds the number of users processed in parallel.
	// Zero or negative means sequential.
	Concurrency int
	// HistoryRetention is how long an unseen listing's baseline is kept.
	// Zero disables purging.
	HistoryRetention time.Duration
	// Now is injectable for deterministic tests.
	Now func() time.Time
}

// Orchestrator iterates all eligible users and isolates their failures:
// one user's error never stops the batch, and the run always returns a
// result.
type Orchestrator struct {
	store   store.DataStore
	monitor *monitor.Monitor
	builder *alert.Builder
	logger  zerolog.Logger
	opts    Options

	mu sync.Mutex
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(s store.DataStore, m *monitor.Monitor, b *alert.Builder, logger zerolog.Logger, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		store:   s,
		monitor: m,
		builder: b,
		logger:  logger,
		opts:    opts,
	}
}

// Run executes one batch run. It never returns an error: failures are
// recorded in the result's error list and the run completes with whatever
// partial progress it made.
func (o *Orchestrator) Run(ctx context.Context) ProcessingResult {
	start := o.opts.Now()
	result := ProcessingResult{
		RunID:  uuid.NewString(),
		Errors: []string{},
	}
	logger := logging.WithRun(o.logger, result.RunID)
	logger.Info().Msg("Batch run started")

	users, err := o.store.FindUsersWithAlertEnabled(ctx, models.AlertKindPriceReduction)
	if err != nil {
		derr := apperrors.NewRunError(apperrors.PhaseDiscovery, "", "",
			apperrors.NewDiscoveryError(models.AlertKindPriceReduction, err))
		o.recordError(&result, derr)
		logger.Error().Err(err).Msg("User discovery failed")
		result.Duration = o.opts.Now().Sub(start)
		return result
	}

	concurrency := o.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, userID := range users {
		// Stop launching new work once the run deadline is reached;
		// in-flight users finish so no write is cut off mid-update.
		if ctx.Err() != nil {
			o.recordError(&result, apperrors.NewRunError(apperrors.PhaseMonitor, userID, "",
				fmt.Errorf("run deadline reached before user was processed: %w", ctx.Err())))
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()
			o.processUser(ctx, logger, userID, &result)
		}(userID)
	}
	wg.Wait()

	o.purgeHistory(ctx, logger, &result)

	result.Duration = o.opts.Now().Sub(start)
	logging.LogRunResult(logger, result.UsersProcessed, result.TargetAreasMonitored,
		result.AlertsGenerated, len(result.Errors), result.Duration)
	return result
}

// processUser runs the settings, monitor, build and save phases for one
// user. Every failure is caught here so the batch continues with the next
// user.
func (o *Orchestrator) processUser(ctx context.Context, logger zerolog.Logger, userID string, result *ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			o.recordError(result, apperrors.NewRunError(apperrors.PhaseMonitor, userID, "",
				fmt.Errorf("panic while processing user: %v", r)))
		}
	}()

	userLogger := logging.WithUser(logger, userID)

	settings, err := o.store.GetAlertSettings(ctx, userID)
	if err != nil {
		o.recordError(result, apperrors.NewRunError(apperrors.PhaseSettings, userID, "", err))
		userLogger.Warn().Err(err).Msg("Settings fetch failed")
		return
	}

	// Expected skip conditions: not errors, no counter increments.
	if settings == nil || !settings.AlertEnabled(models.AlertKindPriceReduction) || len(settings.TargetAreas) == 0 {
		userLogger.Debug().Msg("User skipped")
		return
	}

	events, monitorErrs := o.monitor.MonitorPriceReductions(ctx, settings.TargetAreas, settings)
	for _, merr := range monitorErrs {
		o.recordError(result, merr)
	}

	saved := 0
	for _, event := range events {
		a, err := o.builder.Build(userID, event)
		if err != nil {
			o.recordError(result, apperrors.NewRunError(apperrors.PhaseBuild, userID, event.AreaID, err))
			continue
		}

		inserted, err := o.store.SaveAlert(ctx, a)
		if err != nil {
			o.recordError(result, apperrors.NewRunError(apperrors.PhaseSave, userID, event.AreaID,
				apperrors.NewPersistenceError("alert", a.ID, err)))
			continue
		}
		if inserted {
			saved++
			logging.LogAlertSaved(userLogger, a.ID, userID, a.ListingID)
		}
	}

	o.mu.Lock()
	result.UsersProcessed++
	result.TargetAreasMonitored += len(settings.TargetAreas)
	result.AlertsGenerated += saved
	o.mu.Unlock()
}

// purgeHistory expires baselines for listings unseen past the retention
// window. Runs after the user loop so a slow purge never delays alerts.
func (o *Orchestrator) purgeHistory(ctx context.Context, logger zerolog.Logger, result *ProcessingResult) {
	if o.opts.HistoryRetention <= 0 {
		return
	}

	cutoff := o.opts.Now().Add(-o.opts.HistoryRetention)
	purged, err := o.store.PurgeStaleHistory(ctx, cutoff)
	if err != nil {
		o.recordError(result, apperrors.NewRunError(apperrors.PhasePurge, "", "", err))
		return
	}
	if purged > 0 {
		logger.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("Stale price history purged")
	}
}

func (o *Orchestrator) recordError(result *ProcessingResult, err error) {
	o.mu.Lock()
	result.Errors = append(result.Errors, err.Error())
	o.mu.Unlock()
}
