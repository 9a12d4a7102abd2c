// Package ingest defines the ingestion source contract and the
// normalization of raw source records into canonical books.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"inkshelf/pkg/models"
)

// Source is implemented by each way books can enter the system:
// the Calibre catalog, the OPDS feed, the pushed snapshot store and
// the built-in demo data. Each source produces a complete immutable
// snapshot; there is no incremental mutation.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (models.IngestionResult, error)
}

// Prober is optionally implemented by sources that can cheaply check
// reachability without a full fetch. Used by the info and health
// endpoints.
type Prober interface {
	Probe(ctx context.Context) error
}

// NewResult stamps a fresh snapshot with an ID and fetch time.
func NewResult(source string, books []models.Book, availability models.Availability) models.IngestionResult {
	return models.IngestionResult{
		SnapshotID:   uuid.NewString(),
		Books:        books,
		FetchedAt:    time.Now(),
		Source:       source,
		Availability: availability,
	}
}

// ClassifyAvailability maps a reachable source's book count onto the
// empty/populated half of the tri-state.
func ClassifyAvailability(n int) models.Availability {
	if n == 0 {
		return models.AvailabilityEmpty
	}
	return models.AvailabilityPopulated
}
