package syncpush

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"inkshelf/internal/ingest"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

// snapshot is the on-disk layout. A push replaces the whole file;
// nothing is ever merged.
type snapshot struct {
	Books       []models.Book `json:"books"`
	LastUpdated time.Time     `json:"last_updated"`
	TotalBooks  int           `json:"total_books"`
	Source      string        `json:"source"`
}

// Store holds the last pushed snapshot in memory and mirrors it to
// disk so it survives restarts. It doubles as the ingestion source for
// pushed mode.
type Store struct {
	path string

	mu   sync.RWMutex
	snap snapshot

	log zerolog.Logger
}

func NewStore(path string) *Store {
	return &Store{path: path, log: logging.For("snapshot-store")}
}

// Load reads the persisted snapshot. A missing file is a fresh start,
// not an error.
func (s *Store) Load() error {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	s.log.Info().Int("books", len(snap.Books)).Str("path", s.path).Msg("snapshot loaded")
	return nil
}

// Replace swaps in a new collection and persists it. Last write wins.
func (s *Store) Replace(books []models.Book, source string) error {
	snap := snapshot{
		Books:       books,
		LastUpdated: time.Now(),
		TotalBooks:  len(books),
		Source:      source,
	}

	if err := s.persist(snap); err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// persist writes to a temp file and renames, so a crash mid-write
// never leaves a torn snapshot behind.
func (s *Store) persist(snap snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Current returns the held collection and its push time.
func (s *Store) Current() ([]models.Book, time.Time, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Books, s.snap.LastUpdated, s.snap.Source
}

// Name implements ingest.Source.
func (s *Store) Name() string { return models.SourcePushed }

// Fetch implements ingest.Source over the held snapshot. The store is
// local, so it is never unreachable; before the first push it is just
// empty.
func (s *Store) Fetch(_ context.Context) (models.IngestionResult, error) {
	s.mu.RLock()
	books := s.snap.Books
	fetchedAt := s.snap.LastUpdated
	s.mu.RUnlock()

	result := ingest.NewResult(models.SourcePushed, books, ingest.ClassifyAvailability(len(books)))
	if !fetchedAt.IsZero() {
		result.FetchedAt = fetchedAt
	}
	return result, nil
}
