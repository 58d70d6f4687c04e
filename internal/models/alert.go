package models

import "time"

// Alert is a persisted, deduplicated notification of a detected reduction,
// scoped to one user. ID is deterministic over (user, listing, previous
// price, new price) so re-processing the same reduction is idempotent.
// Never mutated after creation.
type Alert struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Kind          string    `json:"kind"`
	ListingID     string    `json:"listing_id"`
	AreaID        string    `json:"area_id"`
	PreviousPrice int64     `json:"previous_price"`
	NewPrice      int64     `json:"new_price"`
	DropAmount    int64     `json:"drop_amount"`
	DropPercent   float64   `json:"drop_percent"`
	DetectedAt    time.Time `json:"detected_at"`
	CreatedAt     time.Time `json:"created_at"`
}
