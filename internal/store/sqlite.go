// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"homewatch/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Per-user alert settings. Target areas and enabled kinds stored as JSON.
	CREATE TABLE IF NOT EXISTS alert_settings (
		user_id TEXT PRIMARY KEY,
		enabled_alert_types TEXT NOT NULL,
		target_areas TEXT NOT NULL,
		price_min INTEGER,
		price_max INTEGER,
		updated_at DATETIME NOT NULL
	);

	-- Persisted alerts. The deterministic id enforces exactly-once per
	-- detected reduction.
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		area_id TEXT NOT NULL,
		previous_price INTEGER NOT NULL,
		new_price INTEGER NOT NULL,
		drop_amount INTEGER NOT NULL,
		drop_percent REAL NOT NULL,
		detected_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id, created_at);

	-- Last-known price baseline, one row per listing.
	CREATE TABLE IF NOT EXISTS price_history (
		listing_id TEXT PRIMARY KEY,
		area_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		observed_at DATETIME NOT NULL,
		last_seen_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_seen ON price_history(last_seen_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Alert Settings Methods
// ============================================================================

// FindUsersWithAlertEnabled returns the IDs of users subscribed to the
// given alert kind. Returns an empty slice, not an error, when none match.
func (s *SQLiteStore) FindUsersWithAlertEnabled(ctx context.Context, alertKind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, enabled_alert_types FROM alert_settings ORDER BY user_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert settings: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID, kindsJSON string
		if err := rows.Scan(&userID, &kindsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		var kinds []string
		if err := json.Unmarshal([]byte(kindsJSON), &kinds); err != nil {
			continue
		}
		for _, k := range kinds {
			if k == alertKind {
				users = append(users, userID)
				break
			}
		}
	}

	return users, rows.Err()
}

// GetAlertSettings retrieves a user's alert settings.
// Returns (nil, nil) when the user has no settings.
func (s *SQLiteStore) GetAlertSettings(ctx context.Context, userID string) (*models.AlertSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, enabled_alert_types, target_areas, price_min, price_max, updated_at
		FROM alert_settings WHERE user_id = ?
	`, userID)

	var settings models.AlertSettings
	var kindsJSON, areasJSON string
	var priceMin, priceMax sql.NullInt64
	err := row.Scan(&settings.UserID, &kindsJSON, &areasJSON, &priceMin, &priceMax, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert settings: %w", err)
	}

	if err := json.Unmarshal([]byte(kindsJSON), &settings.EnabledAlertTypes); err != nil {
		return nil, fmt.Errorf("failed to decode enabled alert types: %w", err)
	}
	if err := json.Unmarshal([]byte(areasJSON), &settings.TargetAreas); err != nil {
		return nil, fmt.Errorf("failed to decode target areas: %w", err)
	}
	if priceMin.Valid || priceMax.Valid {
		settings.PriceRange = &models.PriceRange{
			Min: priceMin.Int64,
			Max: priceMax.Int64,
		}
	}

	return &settings, nil
}

// SaveAlertSettings inserts or replaces a user's alert settings.
func (s *SQLiteStore) SaveAlertSettings(ctx context.Context, settings *models.AlertSettings) error {
	kindsJSON, err := json.Marshal(settings.EnabledAlertTypes)
	if err != nil {
		return fmt.Errorf("failed to encode enabled alert types: %w", err)
	}
	areasJSON, err := json.Marshal(settings.TargetAreas)
	if err != nil {
		return fmt.Errorf("failed to encode target areas: %w", err)
	}

	var priceMin, priceMax sql.NullInt64
	if settings.PriceRange != nil {
		priceMin = sql.NullInt64{Int64: settings.PriceRange.Min, Valid: true}
		priceMax = sql.NullInt64{Int64: settings.PriceRange.Max, Valid: true}
	}

	updatedAt := settings.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alert_settings (user_id, enabled_alert_types, target_areas, price_min, price_max, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, settings.UserID, string(kindsJSON), string(areasJSON), priceMin, priceMax, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save alert settings: %w", err)
	}
	return nil
}

// ============================================================================
// Alerts Methods
// ============================================================================

// SaveAlert persists an alert. The insert is idempotent on the alert's
// deterministic ID: re-saving the same alert is a no-op, reported by the
// returned bool (true when a new row was written).
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts
			(id, user_id, kind, listing_id, area_id, previous_price, new_price, drop_amount, drop_percent, detected_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.UserID, alert.Kind, alert.ListingID, alert.AreaID,
		alert.PreviousPrice, alert.NewPrice, alert.DropAmount, alert.DropPercent,
		alert.DetectedAt, createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to save alert: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows > 0, nil
}

// GetAlerts retrieves a user's alerts, most recent first.
func (s *SQLiteStore) GetAlerts(ctx context.Context, userID string, filter AlertFilter) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, kind, listing_id, area_id, previous_price, new_price,
		       drop_amount, drop_percent, detected_at, created_at
		FROM alerts WHERE user_id = ?
	`
	args := []interface{}{userID}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.AreaID != "" {
		query += " AND area_id = ?"
		args = append(args, filter.AreaID)
	}
	if !filter.Since.IsZero() {
		query += " AND detected_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY detected_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.ListingID, &a.AreaID,
			&a.PreviousPrice, &a.NewPrice, &a.DropAmount, &a.DropPercent,
			&a.DetectedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// ============================================================================
// Price History Methods
// ============================================================================

// GetPriceHistory retrieves the price baseline for a listing.
// Returns (nil, nil) when the listing has never been observed.
func (s *SQLiteStore) GetPriceHistory(ctx context.Context, listingID string) (*models.PriceHistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT listing_id, area_id, price, observed_at, last_seen_at
		FROM price_history WHERE listing_id = ?
	`, listingID)

	var rec models.PriceHistoryRecord
	err := row.Scan(&rec.ListingID, &rec.AreaID, &rec.Price, &rec.ObservedAt, &rec.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return &rec, nil
}

// PutPriceHistory stores the first observation of a listing. The insert is
// ignored if a baseline already exists, so a concurrent first observation
// cannot produce duplicate rows.
func (s *SQLiteStore) PutPriceHistory(ctx context.Context, rec *models.PriceHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO price_history (listing_id, area_id, price, observed_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ListingID, rec.AreaID, rec.Price, rec.ObservedAt, rec.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to put price history: %w", err)
	}
	return nil
}

// UpdatePriceHistory replaces a listing's baseline only if the stored price
// still equals prevPrice (compare-and-swap). A concurrent run that already
// moved the baseline makes this a no-op rather than corrupting the diff.
func (s *SQLiteStore) UpdatePriceHistory(ctx context.Context, listingID string, prevPrice int64, rec *models.PriceHistoryRecord) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE price_history
		SET price = ?, observed_at = ?, last_seen_at = ?
		WHERE listing_id = ? AND price = ?
	`, rec.Price, rec.ObservedAt, rec.LastSeenAt, listingID, prevPrice)
	if err != nil {
		return fmt.Errorf("failed to update price history: %w", err)
	}
	return nil
}

// TouchPriceHistory refreshes a listing's last-seen timestamp without
// touching the price baseline.
func (s *SQLiteStore) TouchPriceHistory(ctx context.Context, listingID string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE price_history SET last_seen_at = ? WHERE listing_id = ?
	`, seenAt, listingID)
	if err != nil {
		return fmt.Errorf("failed to touch price history: %w", err)
	}
	return nil
}

// PurgeStaleHistory deletes baselines for listings not seen since cutoff.
// Returns the number of purged records.
func (s *SQLiteStore) PurgeStaleHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM price_history WHERE last_seen_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge price history: %w", err)
	}
	return res.RowsAffected()
}
