package ingest

import (
	"html"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"inkshelf/pkg/models"
	"inkshelf/pkg/timeutil"
)

const (
	// DescriptionBudget is the character cap for plain-text
	// descriptions on the e-ink layout.
	DescriptionBudget = 200

	// PageBytes is the rough size of one page in a text-heavy book,
	// used to estimate page counts from file sizes.
	PageBytes = 2048

	maxStars = 5
)

var stripPolicy = bluemonday.StrictPolicy()

// Normalize converts a raw source record into the canonical Book.
// Pure, no I/O, and idempotent: feeding a normalized book's fields
// back through changes nothing.
func Normalize(raw models.RawBook, now time.Time) models.Book {
	ratingValue := raw.Rating
	if ratingValue > maxStars {
		// source rated on a 0-10 scale
		ratingValue = ratingValue / 2
	}
	if ratingValue < 0 {
		ratingValue = 0
	}
	stars := int(math.Floor(ratingValue))
	if stars > maxStars {
		stars = maxStars
	}

	book := models.Book{
		ID:            raw.Identity(),
		Title:         defaultString(raw.Title, "Unknown Title"),
		Author:        defaultString(raw.Author, "Unknown Author"),
		Rating:        stars,
		RatingValue:   ratingValue,
		AddedAt:       timeutil.ParseAddedAtAt(raw.Timestamp, now),
		Tags:          CleanTags(raw.Tags),
		Description:   Truncate(StripHTML(raw.Description), DescriptionBudget),
		PageCount:     raw.PageCount,
		Series:        strings.TrimSpace(raw.Series),
		Publisher:     strings.TrimSpace(raw.Publisher),
		Language:      strings.TrimSpace(raw.Language),
		PublishedDate: strings.TrimSpace(raw.PublishedDate),
		Formats:       raw.Formats,
		FileSize:      raw.FileSize,
		CoverURL:      raw.CoverURL,
		ThumbnailURL:  raw.ThumbnailURL,
		DownloadURL:   raw.DownloadURL,
		Identifiers:   raw.Identifiers,
		Contributors:  raw.Contributors,
	}

	if book.PageCount == nil && raw.FileSize > 0 {
		est := int(raw.FileSize / PageBytes)
		if est < 1 {
			est = 1
		}
		book.PageCount = &est
	}

	return book
}

// NormalizeAll maps a raw batch in source order.
func NormalizeAll(raws []models.RawBook, now time.Time) []models.Book {
	books := make([]models.Book, 0, len(raws))
	for _, raw := range raws {
		books = append(books, Normalize(raw, now))
	}
	return books
}

// CleanTags trims, dedupes and drops empty or generic placeholder
// labels (a bare "Book" category carries no information on a book
// display).
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || isGenericTag(tag) {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isGenericTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "book", "books", "ebook", "ebooks":
		return true
	}
	return false
}

// StripHTML reduces markup to plain text and collapses the leftover
// whitespace.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	plain := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

// Truncate caps s at budget runes, ellipsis included, so truncating
// an already-truncated string is a no-op.
func Truncate(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	if budget <= 3 {
		return string(runes[:budget])
	}
	return string(runes[:budget-3]) + "..."
}

func defaultString(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
