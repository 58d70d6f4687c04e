// Package models defines the core domain types for the monitoring pipeline.
package models

import "time"

// AlertKindPriceReduction is the alert kind produced by the price monitor.
const AlertKindPriceReduction = "price-reduction"

// TargetArea is a user-configured geographic scope to monitor for listings.
type TargetArea struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Boundary is an optional provider-specific boundary expression
	// (polygon, bounding box, postal prefix). Opaque to the monitor.
	Boundary string `json:"boundary,omitempty"`
}

// PriceRange filters alerts to a price band. Zero values mean unbounded.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Contains reports whether price falls inside the range.
// An unset bound (zero) does not constrain.
func (r PriceRange) Contains(price int64) bool {
	if r.Min > 0 && price < r.Min {
		return false
	}
	if r.Max > 0 && price > r.Max {
		return false
	}
	return true
}

// Valid reports whether the range invariants hold.
func (r PriceRange) Valid() bool {
	if r.Min < 0 || r.Max < 0 {
		return false
	}
	if r.Min > 0 && r.Max > 0 && r.Min > r.Max {
		return false
	}
	return true
}

// AlertSettings is a user's alert configuration. Read-only during a run.
type AlertSettings struct {
	UserID            string       `json:"user_id"`
	EnabledAlertTypes []string     `json:"enabled_alert_types"`
	TargetAreas       []TargetArea `json:"target_areas"`
	PriceRange        *PriceRange  `json:"price_range,omitempty"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// AlertEnabled reports whether the user subscribes to the given alert kind.
func (s *AlertSettings) AlertEnabled(kind string) bool {
	for _, t := range s.EnabledAlertTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// ListingSnapshot is a point-in-time observation of one listing,
// supplied fresh each run by the listing provider.
type ListingSnapshot struct {
	ListingID  string    `json:"listing_id"`
	AreaID     string    `json:"area_id"`
	Price      int64     `json:"price"`
	Address    string    `json:"address,omitempty"`
	ListingURL string    `json:"listing_url,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// PriceHistoryRecord is the persisted last-known price baseline for a listing.
// Exactly one record exists per listing.
type PriceHistoryRecord struct {
	ListingID  string    `json:"listing_id"`
	AreaID     string    `json:"area_id"`
	Price      int64     `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ReductionEvent is a detected price drop for a listing. Transient:
// consumed immediately by the alert builder.
type ReductionEvent struct {
	ListingID     string
	AreaID        string
	PreviousPrice int64
	NewPrice      int64
	DetectedAt    time.Time
}

// Drop returns the absolute price drop.
func (e ReductionEvent) Drop() int64 {
	return e.PreviousPrice - e.NewPrice
}

// DropPercent returns the drop as a fraction of the previous price.
func (e ReductionEvent) DropPercent() float64 {
	if e.PreviousPrice == 0 {
		return 0
	}
	return float64(e.PreviousPrice-e.NewPrice) / float64(e.PreviousPrice)
}
