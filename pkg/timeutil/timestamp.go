// Package timeutil normalizes the timestamp formats seen across
// Calibre catalogs and OPDS feeds into plain local instants.
package timeutil

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// StaleFallback is how far in the past an unparsable timestamp lands.
// Stale-but-present beats erroring: the display client still gets a
// well-formed record, it just sorts into the "earlier" bucket.
const StaleFallback = 30 * 24 * time.Hour

// ParseAddedAt normalizes a raw timestamp string into a local instant.
// It never fails; see ParseAddedAtAt for the rules.
func ParseAddedAt(raw string) time.Time {
	return ParseAddedAtAt(raw, time.Now())
}

// ParseAddedAtAt parses raw relative to the given now. Accepted input
// is ISO-8601-ish: optional T separator, optional +offset or trailing
// Z, optional fractional seconds. The offset is stripped rather than
// applied, matching how the catalog stores naive local times. Anything
// unparsable degrades to now minus StaleFallback.
func ParseAddedAtAt(raw string, now time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now.Add(-StaleFallback)
	}

	// drop a trailing offset and UTC marker, keep the naive part
	if i := strings.Index(s, "+"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "Z")
	s = strings.Replace(s, "T", " ", 1)
	s = strings.TrimSpace(s)

	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}

	// last resort: lenient parse for the odd formats feeds invent
	if t, err := dateparse.ParseLocal(s); err == nil {
		return t
	}
	return now.Add(-StaleFallback)
}
