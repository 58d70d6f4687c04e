// Package provider supplies current listing snapshots for target areas.
package provider

import (
	"context"

	"homewatch/internal/models"
)

// ListingProvider fetches current listing snapshots for one target area.
//
// A failed fetch must surface as an error, never as an empty slice, so
// callers can distinguish "no listings in this area" from "fetch failed".
type ListingProvider interface {
	FetchSnapshots(ctx context.Context, area models.TargetArea) ([]models.ListingSnapshot, error)
}
