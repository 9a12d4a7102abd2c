// Package opds fetches and parses Calibre-web OPDS feeds.
package opds

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"inkshelf/internal/ingest"
	"inkshelf/pkg/models"
)

// Atom feed shapes. Dublin-Core extension elements are matched by
// namespace URI so prefix spelling in the document does not matter.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title        string         `xml:"title"`
	ID           string         `xml:"id"`
	Updated      string         `xml:"updated"`
	Published    string         `xml:"published"`
	Authors      []atomPerson   `xml:"author"`
	Contributors []atomPerson   `xml:"contributor"`
	Summary      string         `xml:"summary"`
	Content      atomContent    `xml:"content"`
	Categories   []atomCategory `xml:"category"`
	Links        []atomLink     `xml:"link"`

	Rating      string   `xml:"http://purl.org/dc/terms/ rating"`
	Series      string   `xml:"http://purl.org/dc/terms/ series"`
	Language    string   `xml:"http://purl.org/dc/terms/ language"`
	Publisher   string   `xml:"http://purl.org/dc/terms/ publisher"`
	Issued      string   `xml:"http://purl.org/dc/terms/ issued"`
	Identifiers []string `xml:"http://purl.org/dc/terms/ identifier"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomContent struct {
	// content may be xhtml; keep the raw inner markup and strip later
	Raw string `xml:",innerxml"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

type atomLink struct {
	Rel    string `xml:"rel,attr"`
	Type   string `xml:"type,attr"`
	Href   string `xml:"href,attr"`
	Length string `xml:"length,attr"`
	Title  string `xml:"title,attr"`
}

const navFeedType = "profile=opds-catalog"

var (
	ratingMarker = regexp.MustCompile(`(?i)rating:\s*([0-9]+(?:\.[0-9]+)?)`)
	pagesMarker  = regexp.MustCompile(`(?i)(\d+)\s*pages?`)
)

func parseFeed(data []byte) (*atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse feed xml: %w", err)
	}
	return &feed, nil
}

// booksFromFeed extracts raw book records, skipping pure navigation
// entries. Every field is optional; a malformed entry costs only
// itself, never the batch.
func booksFromFeed(feed *atomFeed) []models.RawBook {
	raws := make([]models.RawBook, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if !isBookEntry(entry) {
			continue
		}
		raws = append(raws, entryToRaw(entry))
	}
	return raws
}

// isBookEntry applies the discrimination rule: an entry is a book only
// if it carries at least one acquisition link. Navigation entries only
// link to further catalog feeds.
func isBookEntry(entry atomEntry) bool {
	for _, link := range entry.Links {
		if isAcquisitionLink(link) {
			return true
		}
	}
	return false
}

func isAcquisitionLink(link atomLink) bool {
	if strings.Contains(link.Rel, "acquisition") {
		return true
	}
	t := strings.ToLower(link.Type)
	if !strings.HasPrefix(t, "application/") || strings.Contains(t, "opds") {
		return false
	}
	for _, format := range []string{"epub", "pdf", "mobi", "azw", "octet-stream"} {
		if strings.Contains(t, format) {
			return true
		}
	}
	return false
}

func entryToRaw(entry atomEntry) models.RawBook {
	raw := models.RawBook{
		SourceKey:     strings.TrimSpace(entry.ID),
		Title:         strings.TrimSpace(entry.Title),
		Timestamp:     firstNonEmpty(entry.Updated, entry.Published),
		Series:        strings.TrimSpace(entry.Series),
		Language:      strings.TrimSpace(entry.Language),
		Publisher:     strings.TrimSpace(entry.Publisher),
		PublishedDate: strings.TrimSpace(entry.Issued),
	}

	if len(entry.Authors) > 0 {
		raw.Author = strings.TrimSpace(entry.Authors[0].Name)
	}
	for _, person := range entry.Contributors {
		if name := strings.TrimSpace(person.Name); name != "" {
			raw.Contributors = append(raw.Contributors, name)
		}
	}
	for _, id := range entry.Identifiers {
		if id = strings.TrimSpace(id); id != "" {
			raw.Identifiers = append(raw.Identifiers, id)
		}
	}

	for _, category := range entry.Categories {
		label := category.Label
		if label == "" {
			label = category.Term
		}
		if label != "" {
			raw.Tags = append(raw.Tags, label)
		}
	}

	content := ingest.StripHTML(entry.Content.Raw)
	raw.Description = firstNonEmpty(strings.TrimSpace(entry.Summary), content)
	raw.Rating = extractRating(entry, content)
	if pages := extractPageCount(content + " " + entry.Summary); pages > 0 {
		raw.PageCount = &pages
	}

	applyLinks(&raw, entry.Links)
	return raw
}

// extractRating prefers the dc:rating element and falls back to a
// "Rating: N" marker in the free-text content.
func extractRating(entry atomEntry, content string) float64 {
	if s := strings.TrimSpace(entry.Rating); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	for _, text := range []string{content, entry.Summary} {
		if m := ratingMarker.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v
			}
		}
	}
	return 0
}

// extractPageCount pulls a number out of text like "245 pages".
func extractPageCount(text string) int {
	m := pagesMarker.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	pages, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return pages
}

// applyLinks derives formats, file size and cover/acquisition URLs
// from the entry's link list.
func applyLinks(raw *models.RawBook, links []atomLink) {
	for _, link := range links {
		t := strings.ToLower(link.Type)

		switch {
		case strings.Contains(link.Rel, "cover") || strings.HasSuffix(link.Rel, "/image"):
			raw.CoverURL = link.Href
		case strings.Contains(link.Rel, "thumbnail"):
			raw.ThumbnailURL = link.Href
		}

		if isAcquisitionLink(link) && raw.DownloadURL == "" {
			raw.DownloadURL = link.Href
		}

		for marker, format := range map[string]string{
			"epub": "EPUB", "pdf": "PDF", "mobi": "MOBI", "azw": "AZW",
		} {
			if strings.Contains(t, marker) {
				raw.Formats = appendIfMissing(raw.Formats, format)
			}
		}

		if link.Length != "" {
			if size, err := strconv.ParseInt(link.Length, 10, 64); err == nil && size > raw.FileSize {
				raw.FileSize = size
			}
		}
	}
}

// findNewestLink scans a root navigation feed for an entry whose title
// mentions recency ("newest" or "date") and returns its catalog link,
// absolutized against base.
func findNewestLink(data []byte, base string) string {
	feed, err := parseFeed(data)
	if err != nil {
		return ""
	}

	for _, entry := range feed.Entries {
		title := strings.ToLower(entry.Title)
		if !strings.Contains(title, "newest") && !strings.Contains(title, "date") {
			continue
		}
		for _, link := range entry.Links {
			if !strings.Contains(link.Type, navFeedType) || link.Href == "" {
				continue
			}
			if strings.HasPrefix(link.Href, "/") {
				return strings.TrimSuffix(base, "/") + link.Href
			}
			return link.Href
		}
	}
	return ""
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
