// Package database locates and opens the Calibre catalog file.
//
// The catalog is owned by Calibre, not by this service: it is only
// ever opened read-only, one connection per logical fetch.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// CatalogFile is the well-known database name inside a Calibre library.
const CatalogFile = "metadata.db"

// CandidatePaths returns the ordered list of locations searched for
// the catalog. An explicit override always wins and is returned alone.
func CandidatePaths(override string) []string {
	if override != "" {
		return []string{override}
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return []string{
		filepath.Join(home, "Calibre Library", CatalogFile),
		filepath.Join(home, "CalibreLibrary", CatalogFile),
		filepath.Join(home, "calibre", CatalogFile),
		filepath.Join("/data", "calibre", CatalogFile),
		CatalogFile, // working directory, mostly for dev setups
	}
}

// Discover returns the first candidate path that exists, or "" when
// the catalog is nowhere to be found. Absence is not an error here;
// callers surface it as an unreachable source.
func Discover(override string) string {
	for _, p := range CandidatePaths(override) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// OpenReadOnly opens the catalog at path without taking write locks,
// so a running Calibre instance is never disturbed.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	return db, nil
}
