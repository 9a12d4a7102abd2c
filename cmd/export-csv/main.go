// export-csv dumps the recent books from a local Calibre catalog to a
// CSV file, for spreadsheets or quick diffs between machines.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"inkshelf/internal/catalog"
	"inkshelf/internal/ingest"
	"inkshelf/pkg/database"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

func main() {
	out := flag.String("out", "data/books.csv", "output CSV path")
	path := flag.String("calibre", "", "path to metadata.db (default: discover)")
	limit := flag.Int("limit", 500, "max books to export")
	flag.Parse()

	logging.Init("info", "console")
	log := logging.For("export-csv")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPath := database.Discover(*path)
	if dbPath == "" {
		log.Fatal().Str("override", *path).Msg("no calibre catalog found")
	}

	db, err := database.OpenReadOnly(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("open catalog failed")
	}
	defer db.Close()

	raws, err := catalog.NewRepo(db).Recent(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog query failed")
	}
	books := ingest.NormalizeAll(raws, time.Now())

	if err := exportBooks(books, *out); err != nil {
		log.Fatal().Err(err).Msg("export failed")
	}
	log.Info().Int("books", len(books)).Str("out", *out).Msg("export complete")
}

func exportBooks(books []models.Book, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id", "title", "author", "rating", "added_at", "tags",
		"series", "page_count", "formats", "file_size",
	}); err != nil {
		return err
	}

	for _, b := range books {
		pages := ""
		if b.PageCount != nil {
			pages = strconv.Itoa(*b.PageCount)
		}
		size := ""
		if b.FileSize > 0 {
			size = strconv.FormatInt(b.FileSize, 10)
		}

		if err := w.Write([]string{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			b.Author,
			fmt.Sprintf("%g", b.RatingValue),
			b.AddedAt.Format(time.RFC3339),
			strings.Join(b.Tags, "; "),
			b.Series,
			pages,
			strings.Join(b.Formats, "; "),
			size,
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
