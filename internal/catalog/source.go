package catalog

import (
	"context"
	"time"

	"inkshelf/internal/ingest"
	"inkshelf/pkg/database"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

// Source ingests from the local Calibre catalog. Each fetch discovers
// the database file, opens its own read-only connection and closes it
// on every exit path; nothing is held between requests.
type Source struct {
	PathOverride string // config override, empty means discover
	Limit        int
}

func NewSource(pathOverride string, limit int) *Source {
	if limit <= 0 {
		limit = 50
	}
	return &Source{PathOverride: pathOverride, Limit: limit}
}

func (s *Source) Name() string { return models.SourceCatalog }

// Fetch never returns an error to the caller: a missing or broken
// catalog is an unreachable library, not a request failure.
func (s *Source) Fetch(ctx context.Context) (models.IngestionResult, error) {
	log := logging.For("catalog")

	path := database.Discover(s.PathOverride)
	if path == "" {
		log.Warn().Str("override", s.PathOverride).Msg("catalog not found at any candidate path")
		return ingest.NewResult(models.SourceCatalog, nil, models.AvailabilityUnreachable), nil
	}

	db, err := database.OpenReadOnly(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("catalog open failed")
		return ingest.NewResult(models.SourceCatalog, nil, models.AvailabilityUnreachable), nil
	}
	defer db.Close()

	raws, err := NewRepo(db).Recent(ctx, s.Limit)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("catalog query failed")
		return ingest.NewResult(models.SourceCatalog, nil, models.AvailabilityUnreachable), nil
	}

	books := ingest.NormalizeAll(raws, time.Now())
	log.Info().Int("books", len(books)).Str("path", path).Msg("catalog fetch complete")
	return ingest.NewResult(models.SourceCatalog, books, ingest.ClassifyAvailability(len(books))), nil
}

// Probe checks that the catalog file exists and accepts a connection.
func (s *Source) Probe(ctx context.Context) error {
	path := database.Discover(s.PathOverride)
	if path == "" {
		return errCatalogMissing
	}
	db, err := database.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
