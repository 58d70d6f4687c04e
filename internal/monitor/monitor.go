// Package monitor detects price reductions by diffing fresh listing
// snapshots against the persisted price history baseline.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "homewatch/internal/errors"
	"homewatch/internal/logging"
	"homewatch/internal/models"
	"homewatch/internal/provider"
	"homewatch/internal/store"
)

// Monitor diffs current listings against the price history store and emits
// reduction events for one user's target areas.
type Monitor struct {
	provider provider.ListingProvider
	store    store.DataStore
	logger   zerolog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewMonitor creates a new Monitor.
func NewMonitor(p provider.ListingProvider, s store.DataStore, logger zerolog.Logger) *Monitor {
	return &Monitor{
		provider: p,
		store:    s,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock. Intended for tests.
func (m *Monitor) SetNow(now func() time.Time) {
	m.now = now
}

// MonitorPriceReductions scans the given areas and returns accepted
// reduction events in area-processing order.
//
// Area failures are soft: a provider or store error for one area is
// appended to the returned error list and the remaining areas are still
// processed. The method itself never fails.
func (m *Monitor) MonitorPriceReductions(ctx context.Context, areas []models.TargetArea, settings *models.AlertSettings) ([]models.ReductionEvent, []error) {
	var events []models.ReductionEvent
	var errs []error

	for _, area := range areas {
		if err := ctx.Err(); err != nil {
			errs = append(errs, apperrors.NewRunError(apperrors.PhaseMonitor, settings.UserID, area.ID, err))
			break
		}

		areaEvents, areaErrs := m.monitorArea(ctx, area, settings)
		errs = append(errs, areaErrs...)
		events = append(events, areaEvents...)
	}

	return events, errs
}

// monitorArea fetches one area's snapshots and diffs each against history.
// A provider failure yields a single error for the area; a store failure
// for one listing is recorded and the remaining listings still diff.
func (m *Monitor) monitorArea(ctx context.Context, area models.TargetArea, settings *models.AlertSettings) ([]models.ReductionEvent, []error) {
	snapshots, err := m.provider.FetchSnapshots(ctx, area)
	if err != nil {
		return nil, []error{apperrors.NewRunError(apperrors.PhaseMonitor, settings.UserID, area.ID, err)}
	}

	logger := logging.WithArea(m.logger, area.ID)
	logger.Debug().Int("snapshots", len(snapshots)).Msg("Area snapshots fetched")

	var events []models.ReductionEvent
	var errs []error
	for _, snap := range snapshots {
		if snap.ListingID == "" {
			continue
		}

		event, err := m.diffSnapshot(ctx, snap, settings)
		if err != nil {
			logger.Warn().Err(err).Str("listing_id", snap.ListingID).Msg("Listing diff failed")
			errs = append(errs, apperrors.NewRunError(apperrors.PhaseMonitor, settings.UserID, area.ID,
				apperrors.NewPersistenceError("price_history", snap.ListingID, err)))
			continue
		}
		if event != nil {
			events = append(events, *event)
		}
	}

	return events, errs
}

// diffSnapshot compares one snapshot against its baseline and applies the
// history update rules. Returns a non-nil event only for an accepted
// reduction.
func (m *Monitor) diffSnapshot(ctx context.Context, snap models.ListingSnapshot, settings *models.AlertSettings) (*models.ReductionEvent, error) {
	record, err := m.store.GetPriceHistory(ctx, snap.ListingID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	observedAt := snap.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	// First observation establishes the baseline; it cannot be a reduction.
	if record == nil {
		return nil, m.store.PutPriceHistory(ctx, &models.PriceHistoryRecord{
			ListingID:  snap.ListingID,
			AreaID:     snap.AreaID,
			Price:      snap.Price,
			ObservedAt: observedAt,
			LastSeenAt: now,
		})
	}

	updated := &models.PriceHistoryRecord{
		ListingID:  snap.ListingID,
		AreaID:     snap.AreaID,
		Price:      snap.Price,
		ObservedAt: observedAt,
		LastSeenAt: now,
	}

	switch {
	case snap.Price < record.Price:
		// A reduction. The baseline moves to the new price whether or not
		// the user's filter accepts the event, so future diffs stay correct.
		if err := m.store.UpdatePriceHistory(ctx, snap.ListingID, record.Price, updated); err != nil {
			return nil, err
		}
		event := models.ReductionEvent{
			ListingID:     snap.ListingID,
			AreaID:        snap.AreaID,
			PreviousPrice: record.Price,
			NewPrice:      snap.Price,
			DetectedAt:    now,
		}
		if settings.PriceRange != nil && !settings.PriceRange.Contains(snap.Price) {
			return nil, nil
		}
		logging.LogReduction(m.logger, snap.ListingID, snap.AreaID, record.Price, snap.Price)
		return &event, nil

	case snap.Price > record.Price:
		// Price went up: update to the latest known price, no event.
		return nil, m.store.UpdatePriceHistory(ctx, snap.ListingID, record.Price, updated)

	default:
		// Unchanged: only refresh the last-seen timestamp.
		return nil, m.store.TouchPriceHistory(ctx, snap.ListingID, now)
	}
}
