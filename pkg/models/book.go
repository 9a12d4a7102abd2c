package models

import (
	"hash/fnv"
	"time"
)

// Book is the normalized, internal form of a library entry.
//
// All sources (Calibre catalog, OPDS feed, sync push) are mapped into
// this structure first; display formatting works only from this
// representation and never from source-specific shapes.
type Book struct {
	ID            int64     `json:"id"`                       // catalog ID, or a hash of the source key
	Title         string    `json:"title"`                    // "Unknown Title" when absent
	Author        string    `json:"author"`                   // "Unknown Author" when absent
	Rating        int       `json:"rating"`                   // 0-5 stars, floored
	RatingValue   float64   `json:"rating_value"`             // pre-floor value, for percentage stats
	AddedAt       time.Time `json:"added_at"`                 // always resolvable, see timeutil
	Tags          []string  `json:"tags,omitempty"`           // deduped, generic labels dropped
	Description   string    `json:"description,omitempty"`    // plain text, truncated
	PageCount     *int      `json:"page_count,omitempty"`     // direct or estimated from file size
	Series        string    `json:"series,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	Language      string    `json:"language,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	Formats       []string  `json:"formats,omitempty"` // EPUB, PDF, MOBI, AZW
	FileSize      int64     `json:"file_size,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	DownloadURL   string    `json:"download_url,omitempty"`
	Identifiers   []string  `json:"identifiers,omitempty"` // ISBN and friends
	Contributors  []string  `json:"contributors,omitempty"`
}

// RawBook is the unprocessed output of a source adapter. Every field
// is best-effort; the normalizer turns this into a Book.
type RawBook struct {
	ID            int64    `json:"id,omitempty"`         // numeric catalog ID when the source has one
	SourceKey     string   `json:"source_key,omitempty"` // unique string identifier otherwise
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Rating        float64  `json:"rating"`    // source scale, 0-5 or 0-10
	Timestamp     string   `json:"timestamp"` // whatever the source emitted
	Tags          []string `json:"tags,omitempty"`
	Description   string   `json:"description,omitempty"`
	PageCount     *int     `json:"page_count,omitempty"`
	Series        string   `json:"series,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	Language      string   `json:"language,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Formats       []string `json:"formats,omitempty"`
	FileSize      int64    `json:"file_size,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ThumbnailURL  string   `json:"thumbnail_url,omitempty"`
	DownloadURL   string   `json:"download_url,omitempty"`
	Identifiers   []string `json:"identifiers,omitempty"`
	Contributors  []string `json:"contributors,omitempty"`
}

// Identity returns the stable key for a raw book: the numeric ID when
// the source has one, otherwise a deterministic hash of the source key.
func (r RawBook) Identity() int64 {
	if r.ID != 0 {
		return r.ID
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(r.SourceKey))
	// keep it positive so it never collides with real catalog IDs' sign
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
