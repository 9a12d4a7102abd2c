// Package display turns normalized books into the payload the e-ink
// client renders: recency buckets, star ratings, compact dates.
package display

import (
	"fmt"
	"strings"
	"time"

	"inkshelf/internal/ingest"
	"inkshelf/pkg/models"
)

// TagBudget caps the joined tag string; e-ink rows are narrow.
const TagBudget = 30

// Options are the request-level display toggles. They are part of the
// cache key: toggling them must not serve a stale shape.
type Options struct {
	ShowDescriptions bool
	ShowPageCounts   bool
}

// Book is one display-ready row. Index is assigned per bucket after
// capping, not per source order.
type Book struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Tags        string `json:"tags"`
	Rating      string `json:"rating"` // rendered stars, empty when unrated
	HasRating   bool   `json:"has_rating"`
	Description string `json:"description,omitempty"`
	PageCount   *int   `json:"page_count,omitempty"`
	PageDisplay string `json:"page_display,omitempty"`
	ReadingTime string `json:"reading_time,omitempty"`
	DateAdded   string `json:"date_added"` // MM/DD
	DaysAgo     int    `json:"days_ago"`
	IsRecent    bool   `json:"is_recent"` // added within 7 days
	IsNew       bool   `json:"is_new"`    // added within 3 days
	SeriesInfo  string `json:"series_info,omitempty"`
	HasSeries   bool   `json:"has_series"`
	FileInfo    string `json:"file_info,omitempty"`
	Timestamp   string `json:"timestamp"`
}

func formatBook(b models.Book, now time.Time, opts Options) Book {
	daysAgo := int(now.Sub(b.AddedAt).Hours() / 24)
	if daysAgo < 0 {
		daysAgo = 0
	}

	row := Book{
		Title:      b.Title,
		Author:     b.Author,
		Tags:       ingest.Truncate(strings.Join(b.Tags, ", "), TagBudget),
		Rating:     Stars(b.Rating),
		HasRating:  b.RatingValue > 0,
		DateAdded:  b.AddedAt.Format("01/02"),
		DaysAgo:    daysAgo,
		IsRecent:   daysAgo <= 7,
		IsNew:      daysAgo <= 3,
		SeriesInfo: b.Series,
		HasSeries:  b.Series != "",
		FileInfo:   fileInfo(b),
		Timestamp:  b.AddedAt.Format(time.RFC3339),
	}

	if opts.ShowDescriptions {
		row.Description = b.Description
	}
	if opts.ShowPageCounts && b.PageCount != nil {
		row.PageCount = b.PageCount
		row.PageDisplay = fmt.Sprintf("%d pages", *b.PageCount)
		row.ReadingTime = readingTime(*b.PageCount)
	}
	return row
}

// Stars renders n filled stars for the e-ink template.
func Stars(n int) string {
	if n <= 0 {
		return ""
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n)
}

// readingTime is a rough estimate at about a minute per page.
func readingTime(pages int) string {
	if pages <= 0 {
		return ""
	}
	if pages < 60 {
		return fmt.Sprintf("~%dm", pages)
	}
	return fmt.Sprintf("~%dh %dm", pages/60, pages%60)
}

func fileInfo(b models.Book) string {
	var parts []string
	if len(b.Formats) > 0 {
		parts = append(parts, strings.Join(b.Formats, ", "))
	}
	if b.FileSize > 0 {
		parts = append(parts, humanSize(b.FileSize))
	}
	return strings.Join(parts, " · ")
}

func humanSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
