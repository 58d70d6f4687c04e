// Package alert converts reduction events into persisted alert records.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	apperrors "homewatch/internal/errors"
	"homewatch/internal/models"
)

// Builder constructs Alert records from reduction events.
// Build is pure: no I/O, no side effects.
type Builder struct{}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build converts a reduction event into an Alert for the given user.
// The alert ID is deterministic over (userID, listingID, previousPrice,
// newPrice), so re-processing the same reduction yields the same identity
// and the save path deduplicates it.
func (b *Builder) Build(userID string, event models.ReductionEvent) (*models.Alert, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("userID", userID, "must not be empty")
	}
	if event.ListingID == "" {
		return nil, apperrors.NewValidationError("listingID", event.ListingID, "must not be empty")
	}
	if event.PreviousPrice < 0 {
		return nil, apperrors.NewValidationError("previousPrice", event.PreviousPrice, "must not be negative")
	}
	if event.NewPrice < 0 {
		return nil, apperrors.NewValidationError("newPrice", event.NewPrice, "must not be negative")
	}
	if event.NewPrice >= event.PreviousPrice {
		return nil, apperrors.NewValidationError("newPrice", event.NewPrice, "must be strictly below previous price")
	}

	detectedAt := event.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}

	return &models.Alert{
		ID:            Identity(userID, event.ListingID, event.PreviousPrice, event.NewPrice),
		UserID:        userID,
		Kind:          models.AlertKindPriceReduction,
		ListingID:     event.ListingID,
		AreaID:        event.AreaID,
		PreviousPrice: event.PreviousPrice,
		NewPrice:      event.NewPrice,
		DropAmount:    event.Drop(),
		DropPercent:   event.DropPercent(),
		DetectedAt:    detectedAt,
	}, nil
}

// Identity computes the deterministic alert identity. Fields are joined
// with a separator that cannot appear in IDs or decimal prices, so distinct
// inputs cannot collide by concatenation.
func Identity(userID, listingID string, previousPrice, newPrice int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", userID, listingID, previousPrice, newPrice)))
	return hex.EncodeToString(sum[:16])
}
