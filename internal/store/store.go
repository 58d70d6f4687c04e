// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"homewatch/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Alert settings
	FindUsersWithAlertEnabled(ctx context.Context, alertKind string) ([]string, error)
	GetAlertSettings(ctx context.Context, userID string) (*models.AlertSettings, error)
	SaveAlertSettings(ctx context.Context, settings *models.AlertSettings) error

	// Alerts
	SaveAlert(ctx context.Context, alert *models.Alert) (bool, error)
	GetAlerts(ctx context.Context, userID string, filter AlertFilter) ([]models.Alert, error)

	// Price history
	GetPriceHistory(ctx context.Context, listingID string) (*models.PriceHistoryRecord, error)
	PutPriceHistory(ctx context.Context, rec *models.PriceHistoryRecord) error
	UpdatePriceHistory(ctx context.Context, listingID string, prevPrice int64, rec *models.PriceHistoryRecord) error
	TouchPriceHistory(ctx context.Context, listingID string, seenAt time.Time) error
	PurgeStaleHistory(ctx context.Context, cutoff time.Time) (int64, error)

	// Lifecycle
	Close() error
}

// AlertFilter represents filters for querying alerts.
type AlertFilter struct {
	Kind   string
	AreaID string
	Since  time.Time
	Limit  int
}
