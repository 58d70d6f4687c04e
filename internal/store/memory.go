package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"homewatch/internal/models"
)

// MemoryStore is an in-memory DataStore. It backs tests and ad-hoc runs
// where no database file is wanted; semantics match SQLiteStore, including
// idempotent alert inserts and compare-and-swap history updates.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]models.AlertSettings
	alerts   map[string]models.Alert
	history  map[string]models.PriceHistoryRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]models.AlertSettings),
		alerts:   make(map[string]models.Alert),
		history:  make(map[string]models.PriceHistoryRecord),
	}
}

// FindUsersWithAlertEnabled returns users subscribed to the alert kind.
func (m *MemoryStore) FindUsersWithAlertEnabled(ctx context.Context, alertKind string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := []string{}
	for userID, s := range m.settings {
		if s.AlertEnabled(alertKind) {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// GetAlertSettings returns a copy of the user's settings, or nil when absent.
func (m *MemoryStore) GetAlertSettings(ctx context.Context, userID string) (*models.AlertSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

// SaveAlertSettings stores the user's settings.
func (m *MemoryStore) SaveAlertSettings(ctx context.Context, settings *models.AlertSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[settings.UserID] = *settings
	return nil
}

// SaveAlert inserts an alert unless one with the same ID already exists.
func (m *MemoryStore) SaveAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[alert.ID]; exists {
		return false, nil
	}
	a := *alert
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.alerts[a.ID] = a
	return true, nil
}

// GetAlerts returns a user's alerts, most recent first.
func (m *MemoryStore) GetAlerts(ctx context.Context, userID string, filter AlertFilter) ([]models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []models.Alert
	for _, a := range m.alerts {
		if a.UserID != userID {
			continue
		}
		if filter.Kind != "" && a.Kind != filter.Kind {
			continue
		}
		if filter.AreaID != "" && a.AreaID != filter.AreaID {
			continue
		}
		if !filter.Since.IsZero() && a.DetectedAt.Before(filter.Since) {
			continue
		}
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].DetectedAt.After(alerts[j].DetectedAt)
	})
	if filter.Limit > 0 && len(alerts) > filter.Limit {
		alerts = alerts[:filter.Limit]
	}
	return alerts, nil
}

// GetPriceHistory returns the baseline for a listing, or nil when unseen.
func (m *MemoryStore) GetPriceHistory(ctx context.Context, listingID string) (*models.PriceHistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.history[listingID]
	if !ok {
		return nil, nil
	}
	cp := rec
	return &cp, nil
}

// PutPriceHistory stores a first observation; existing baselines are kept.
func (m *MemoryStore) PutPriceHistory(ctx context.Context, rec *models.PriceHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.history[rec.ListingID]; exists {
		return nil
	}
	m.history[rec.ListingID] = *rec
	return nil
}

// UpdatePriceHistory replaces the baseline only if the stored price still
// equals prevPrice.
func (m *MemoryStore) UpdatePriceHistory(ctx context.Context, listingID string, prevPrice int64, rec *models.PriceHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.history[listingID]
	if !ok || current.Price != prevPrice {
		return nil
	}
	m.history[listingID] = *rec
	return nil
}

// TouchPriceHistory refreshes a listing's last-seen timestamp.
func (m *MemoryStore) TouchPriceHistory(ctx context.Context, listingID string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.history[listingID]; ok {
		rec.LastSeenAt = seenAt
		m.history[listingID] = rec
	}
	return nil
}

// PurgeStaleHistory deletes baselines unseen since cutoff.
func (m *MemoryStore) PurgeStaleHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, rec := range m.history {
		if rec.LastSeenAt.Before(cutoff) {
			delete(m.history, id)
			purged++
		}
	}
	return purged, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
