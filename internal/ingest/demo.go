package ingest

import (
	"context"
	"time"

	"inkshelf/pkg/models"
)

// DemoSource serves a small synthetic library so the display pipeline
// can be exercised without a Calibre install. Timestamps are generated
// relative to now so every recency bucket gets members.
type DemoSource struct{}

func NewDemoSource() *DemoSource { return &DemoSource{} }

func (s *DemoSource) Name() string { return models.SourceDemo }

func (s *DemoSource) Fetch(ctx context.Context) (models.IngestionResult, error) {
	now := time.Now()
	stamp := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format("2006-01-02 15:04:05")
	}
	pages := func(n int) *int { return &n }

	raws := []models.RawBook{
		{
			ID: 1, Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin",
			Rating: 10, Timestamp: stamp(1),
			Tags:        []string{"Science Fiction", "Classics"},
			Description: "An envoy's mission to the planet Gethen.",
			PageCount:   pages(304), Formats: []string{"EPUB"}, FileSize: 622592,
		},
		{
			ID: 2, Title: "Piranesi", Author: "Susanna Clarke",
			Rating: 8, Timestamp: stamp(4),
			Tags:        []string{"Fantasy", "Mystery"},
			Description: "The house with infinite halls and a lone inhabitant.",
			PageCount:   pages(245), Formats: []string{"EPUB", "PDF"}, FileSize: 501760,
		},
		{
			ID: 3, Title: "The Dispossessed", Author: "Ursula K. Le Guin",
			Rating: 9, Timestamp: stamp(9),
			Tags:      []string{"Science Fiction"},
			FileSize:  204800, // page count left to the estimator
			Formats:   []string{"EPUB"},
			Series:    "Hainish Cycle",
			Publisher: "Harper & Row",
		},
		{
			ID: 4, Title: "Convenience Store Woman", Author: "Sayaka Murata",
			Rating: 7, Timestamp: stamp(12),
			Tags:      []string{"Fiction", "Japan"},
			PageCount: pages(163), Language: "en",
		},
		{
			ID: 5, Title: "The Name of the Rose", Author: "Umberto Eco",
			Rating: 8, Timestamp: stamp(25),
			Tags:      []string{"Historical", "Mystery"},
			PageCount: pages(536),
		},
		{
			ID: 6, Title: "Invisible Cities", Author: "Italo Calvino",
			Rating: 0, Timestamp: stamp(45),
			Tags: []string{"Fiction"}, PageCount: pages(165),
		},
	}

	books := NormalizeAll(raws, now)
	return NewResult(models.SourceDemo, books, ClassifyAvailability(len(books))), nil
}

// Probe always succeeds; demo data has nothing to reach.
func (s *DemoSource) Probe(ctx context.Context) error { return nil }
