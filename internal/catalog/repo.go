// Package catalog extracts raw book rows from a Calibre metadata.db.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

// Repo runs read-only queries against an already-open catalog
// connection. The schema varies across Calibre versions, so every
// query beyond the reduced baseline is allowed to fail per row and
// leaves the affected field at its default.
type Repo struct {
	DB  *sql.DB
	log zerolog.Logger

	// resolved lazily; 0 means not looked up, -1 means absent
	pageColumnID int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db, log: logging.For("catalog")}
}

// Recent returns up to limit raw rows ordered newest-first. A failure
// of the primary query (schema mismatch on older catalogs) degrades
// to a reduced id/title/timestamp query before giving up.
func (r *Repo) Recent(ctx context.Context, limit int) ([]models.RawBook, error) {
	raws, err := r.recentFull(ctx, limit)
	if err != nil {
		r.log.Warn().Err(err).Msg("primary catalog query failed, using reduced query")
		raws, err = r.recentReduced(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("reduced catalog query: %w", err)
		}
	}

	for i := range raws {
		r.enrich(ctx, &raws[i])
	}
	return raws, nil
}

func (r *Repo) recentFull(ctx context.Context, limit int) ([]models.RawBook, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT b.id, b.title, COALESCE(a.name, b.author_sort, ''), b.timestamp, b.last_modified
		FROM books b
		LEFT JOIN books_authors_link bal ON bal.book = b.id
		LEFT JOIN authors a ON a.id = bal.author
		GROUP BY b.id
		ORDER BY b.last_modified DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var out []models.RawBook
	for rows.Next() {
		var (
			raw          models.RawBook
			title        sql.NullString
			author       sql.NullString
			timestamp    sql.NullString
			lastModified sql.NullString
		)
		if err := rows.Scan(&raw.ID, &title, &author, &timestamp, &lastModified); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		raw.Title = title.String
		raw.Author = author.String
		raw.Timestamp = timestamp.String
		if raw.Timestamp == "" {
			raw.Timestamp = lastModified.String
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("book rows: %w", err)
	}
	return out, nil
}

func (r *Repo) recentReduced(ctx context.Context, limit int) ([]models.RawBook, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, timestamp
		FROM books
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query books reduced: %w", err)
	}
	defer rows.Close()

	var out []models.RawBook
	for rows.Next() {
		var (
			raw       models.RawBook
			title     sql.NullString
			timestamp sql.NullString
		)
		if err := rows.Scan(&raw.ID, &title, &timestamp); err != nil {
			return nil, fmt.Errorf("scan reduced row: %w", err)
		}
		raw.Title = title.String
		raw.Author = "Unknown Author"
		raw.Timestamp = timestamp.String
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reduced rows: %w", err)
	}
	return out, nil
}

// enrich fills optional fields from side tables. Each sub-query stands
// alone: a missing table or column costs that field, never the row.
func (r *Repo) enrich(ctx context.Context, raw *models.RawBook) {
	if rating, err := r.rating(ctx, raw.ID); err == nil {
		raw.Rating = rating
	}
	if tags, err := r.tags(ctx, raw.ID); err == nil {
		raw.Tags = tags
	}
	if desc, err := r.comment(ctx, raw.ID); err == nil {
		raw.Description = desc
	}
	if formats, size, err := r.formats(ctx, raw.ID); err == nil {
		raw.Formats = formats
		raw.FileSize = size
	}
	if pages, err := r.pageCount(ctx, raw.ID); err == nil && pages > 0 {
		raw.PageCount = &pages
	}
}

func (r *Repo) rating(ctx context.Context, bookID int64) (float64, error) {
	var rating sql.NullFloat64
	err := r.DB.QueryRowContext(ctx, `
		SELECT r.rating
		FROM books_ratings_link brl
		JOIN ratings r ON r.id = brl.rating
		WHERE brl.book = ?
	`, bookID).Scan(&rating)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("rating for book %d: %w", bookID, err)
	}
	return rating.Float64, nil
}

func (r *Repo) tags(ctx context.Context, bookID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT t.name
		FROM books_tags_link btl
		JOIN tags t ON t.id = btl.tag
		WHERE btl.book = ?
		ORDER BY t.name
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("tags for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if name.String != "" {
			tags = append(tags, name.String)
		}
	}
	return tags, rows.Err()
}

func (r *Repo) comment(ctx context.Context, bookID int64) (string, error) {
	var text sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT text FROM comments WHERE book = ?`, bookID).Scan(&text)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("comment for book %d: %w", bookID, err)
	}
	return text.String, nil
}

// formats reads the data table Calibre keeps per stored file; the
// size reported is the largest format's uncompressed size.
func (r *Repo) formats(ctx context.Context, bookID int64) ([]string, int64, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT format, uncompressed_size
		FROM data
		WHERE book = ?
	`, bookID)
	if err != nil {
		return nil, 0, fmt.Errorf("formats for book %d: %w", bookID, err)
	}
	defer rows.Close()

	var (
		formats []string
		largest int64
	)
	for rows.Next() {
		var (
			format sql.NullString
			size   sql.NullInt64
		)
		if err := rows.Scan(&format, &size); err != nil {
			return nil, 0, fmt.Errorf("scan format: %w", err)
		}
		if format.String != "" {
			formats = append(formats, format.String)
		}
		if size.Int64 > largest {
			largest = size.Int64
		}
	}
	return formats, largest, rows.Err()
}

// pageCount reads the Count Pages plugin's custom column when the
// catalog has one.
func (r *Repo) pageCount(ctx context.Context, bookID int64) (int, error) {
	if r.pageColumnID == 0 {
		if err := r.DB.QueryRowContext(ctx, `
			SELECT id FROM custom_columns
			WHERE label IN ('pages', 'page_count', 'pagecount') AND datatype IN ('int', 'float')
			LIMIT 1
		`).Scan(&r.pageColumnID); err != nil {
			r.pageColumnID = -1
		}
	}
	if r.pageColumnID <= 0 {
		return 0, nil
	}

	var pages sql.NullInt64
	query := fmt.Sprintf(`SELECT value FROM custom_column_%d WHERE book = ?`, r.pageColumnID)
	if err := r.DB.QueryRowContext(ctx, query, bookID).Scan(&pages); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("page count for book %d: %w", bookID, err)
	}
	return int(pages.Int64), nil
}
