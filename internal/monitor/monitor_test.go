package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "homewatch/internal/errors"
	"homewatch/internal/models"
	"homewatch/internal/store"
)

// fakeProvider serves canned snapshots per area and can fail specific areas.
type fakeProvider struct {
	snapshots map[string][]models.ListingSnapshot
	failAreas map[string]error
}

func (f *fakeProvider) FetchSnapshots(ctx context.Context, area models.TargetArea) ([]models.ListingSnapshot, error) {
	if err, ok := f.failAreas[area.ID]; ok {
		return nil, err
	}
	return f.snapshots[area.ID], nil
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMonitor(p *fakeProvider, s store.DataStore) *Monitor {
	m := NewMonitor(p, s, zerolog.Nop())
	m.SetNow(func() time.Time { return testTime })
	return m
}

func settingsFor(areas ...string) *models.AlertSettings {
	s := &models.AlertSettings{
		UserID:            "u-1",
		EnabledAlertTypes: []string{models.AlertKindPriceReduction},
	}
	for _, id := range areas {
		s.TargetAreas = append(s.TargetAreas, models.TargetArea{ID: id})
	}
	return s
}

func snapshot(listingID, areaID string, price int64) models.ListingSnapshot {
	return models.ListingSnapshot{
		ListingID:  listingID,
		AreaID:     areaID,
		Price:      price,
		ObservedAt: testTime,
	}
}

func seedHistory(t *testing.T, s store.DataStore, listingID, areaID string, price int64) {
	t.Helper()
	err := s.PutPriceHistory(context.Background(), &models.PriceHistoryRecord{
		ListingID:  listingID,
		AreaID:     areaID,
		Price:      price,
		ObservedAt: testTime.Add(-24 * time.Hour),
		LastSeenAt: testTime.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seeding history: %v", err)
	}
}

func TestFirstObservationStoresBaselineNoEvent(t *testing.T) {
	s := store.NewMemoryStore()
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 500000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 0 {
		t.Fatalf("expected zero events on first observation, got %d", len(events))
	}

	rec, err := s.GetPriceHistory(context.Background(), "mls-1")
	if err != nil || rec == nil {
		t.Fatalf("baseline not stored: rec=%v err=%v", rec, err)
	}
	if rec.Price != 500000 {
		t.Errorf("baseline price = %d, want 500000", rec.Price)
	}
}

func TestReductionDetected(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 500000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 480000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}

	e := events[0]
	if e.PreviousPrice != 500000 || e.NewPrice != 480000 {
		t.Errorf("event prices = %d -> %d, want 500000 -> 480000", e.PreviousPrice, e.NewPrice)
	}
	if e.Drop() != 20000 {
		t.Errorf("drop = %d, want 20000", e.Drop())
	}
	if e.DropPercent() != 0.04 {
		t.Errorf("drop percent = %v, want 0.04", e.DropPercent())
	}

	rec, _ := s.GetPriceHistory(context.Background(), "mls-1")
	if rec.Price != 480000 {
		t.Errorf("baseline after reduction = %d, want 480000", rec.Price)
	}
}

func TestPriceIncreaseIsNotReduction(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 480000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 500000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 0 {
		t.Fatalf("expected zero events for a price increase, got %d", len(events))
	}

	rec, _ := s.GetPriceHistory(context.Background(), "mls-1")
	if rec.Price != 500000 {
		t.Errorf("baseline after increase = %d, want 500000", rec.Price)
	}
}

func TestUnchangedPriceOnlyTouchesLastSeen(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 500000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 500000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")

	events, _ := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(events) != 0 {
		t.Fatalf("expected zero events, got %d", len(events))
	}

	rec, _ := s.GetPriceHistory(context.Background(), "mls-1")
	if rec.Price != 500000 {
		t.Errorf("baseline changed on unchanged price: %d", rec.Price)
	}
	if !rec.LastSeenAt.Equal(testTime) {
		t.Errorf("last seen not refreshed: %v", rec.LastSeenAt)
	}
}

func TestRangeFilterExcludesEventButUpdatesHistory(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 500000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 480000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")
	settings.PriceRange = &models.PriceRange{Min: 490000}

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(events) != 0 {
		t.Fatalf("expected filter to exclude the event, got %d events", len(events))
	}

	// The baseline still moves so the next run diffs against the real price.
	rec, _ := s.GetPriceHistory(context.Background(), "mls-1")
	if rec.Price != 480000 {
		t.Errorf("baseline after filtered reduction = %d, want 480000", rec.Price)
	}
}

func TestRangeFilterAppliesToNewPrice(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 600000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 480000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")
	// Previous price is outside the band; the new price is inside.
	settings.PriceRange = &models.PriceRange{Min: 400000, Max: 500000}

	events, _ := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(events) != 1 {
		t.Fatalf("expected one event (filter applies to new price only), got %d", len(events))
	}
}

func TestAreaFailureIsPartial(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-2", "westside", 300000)
	p := &fakeProvider{
		snapshots: map[string][]models.ListingSnapshot{
			"westside": {snapshot("mls-2", "westside", 290000)},
		},
		failAreas: map[string]error{
			"downtown": apperrors.NewProviderError("downtown", "fetch", 503, apperrors.ErrRateLimited),
		},
	}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown", "westside")

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(events) != 1 {
		t.Fatalf("expected the healthy area's event, got %d events", len(events))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one soft error for the failed area, got %d", len(errs))
	}

	var rerr *apperrors.RunError
	if !apperrors.As(errs[0], &rerr) {
		t.Fatalf("expected *RunError, got %T", errs[0])
	}
	if rerr.AreaID != "downtown" || rerr.UserID != "u-1" {
		t.Errorf("error context = %+v, want downtown/u-1", rerr)
	}
}

// brokenHistoryStore fails every price history read.
type brokenHistoryStore struct {
	store.DataStore
	err error
}

func (b *brokenHistoryStore) GetPriceHistory(ctx context.Context, listingID string) (*models.PriceHistoryRecord, error) {
	return nil, b.err
}

func TestHistoryStoreFailureIsRecordedPerListing(t *testing.T) {
	s := &brokenHistoryStore{
		DataStore: store.NewMemoryStore(),
		err:       apperrors.NewPersistenceError("price_history", "", apperrors.ErrStoreClosed),
	}
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {
			snapshot("mls-1", "downtown", 500000),
			snapshot("mls-2", "downtown", 300000),
		},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown")

	events, errs := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(events) != 0 {
		t.Fatalf("expected zero events with a broken history store, got %d", len(events))
	}
	if len(errs) != 2 {
		t.Fatalf("expected one error per listing, got %d: %v", len(errs), errs)
	}

	var rerr *apperrors.RunError
	if !apperrors.As(errs[0], &rerr) {
		t.Fatalf("expected *RunError, got %T", errs[0])
	}
	if rerr.AreaID != "downtown" || rerr.UserID != "u-1" {
		t.Errorf("error context = %+v, want downtown/u-1", rerr)
	}
	var perr *apperrors.PersistenceError
	if !apperrors.As(errs[0], &perr) {
		t.Fatalf("expected wrapped *PersistenceError, got %v", errs[0])
	}
	if perr.Key != "mls-1" {
		t.Errorf("persistence error key = %q, want mls-1", perr.Key)
	}
}

func TestMultipleAreasEventsInAreaOrder(t *testing.T) {
	s := store.NewMemoryStore()
	seedHistory(t, s, "mls-1", "downtown", 500000)
	seedHistory(t, s, "mls-2", "westside", 300000)
	p := &fakeProvider{snapshots: map[string][]models.ListingSnapshot{
		"downtown": {snapshot("mls-1", "downtown", 450000)},
		"westside": {snapshot("mls-2", "westside", 280000)},
	}}
	m := newTestMonitor(p, s)
	settings := settingsFor("downtown", "westside")

	events, _ := m.MonitorPriceReductions(context.Background(), settings.TargetAreas, settings)
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}
	if events[0].AreaID != "downtown" || events[1].AreaID != "westside" {
		t.Errorf("events out of area-processing order: %v, %v", events[0].AreaID, events[1].AreaID)
	}
}
