package opds

import (
	"context"
	"errors"
	"time"

	"inkshelf/internal/ingest"
	"inkshelf/pkg/models"
)

// Source adapts the feed client to the ingestion contract.
type Source struct {
	Client *Client
}

func NewSource(client *Client) *Source {
	return &Source{Client: client}
}

func (s *Source) Name() string { return models.SourceFeed }

// Fetch maps feed outcomes onto the availability tri-state; like the
// catalog source it never surfaces an error for an unreachable server.
func (s *Source) Fetch(ctx context.Context) (models.IngestionResult, error) {
	raws, err := s.Client.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			s.Client.log.Warn().Err(err).Msg("feed fetch failed")
		}
		return ingest.NewResult(models.SourceFeed, nil, models.AvailabilityUnreachable), nil
	}

	books := ingest.NormalizeAll(raws, time.Now())
	return ingest.NewResult(models.SourceFeed, books, ingest.ClassifyAvailability(len(books))), nil
}

func (s *Source) Probe(ctx context.Context) error {
	return s.Client.Probe(ctx)
}
