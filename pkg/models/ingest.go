package models

import "time"

// Availability is the tri-state a source reports alongside its books.
// The original variants disagreed on whether "no books" meant an empty
// library or an unreachable one; here the distinction is explicit and
// carried on every IngestionResult.
type Availability string

const (
	AvailabilityPopulated   Availability = "populated"
	AvailabilityEmpty       Availability = "empty"
	AvailabilityUnreachable Availability = "unreachable"
)

// Source names as exposed in payloads and the persisted snapshot.
const (
	SourceCatalog = "catalog"
	SourceFeed    = "feed"
	SourcePushed  = "pushed"
	SourceDemo    = "demo"
	SourceNone    = "none"
)

// IngestionResult is one complete pass over a source. A later result
// fully replaces the previous one; books are never merged in place.
type IngestionResult struct {
	SnapshotID   string       `json:"snapshot_id"`
	Books        []Book       `json:"books"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Source       string       `json:"source"`
	Availability Availability `json:"availability"`
}

// Connected reports whether the source behind this result was
// reachable, regardless of how many books it held.
func (r IngestionResult) Connected() bool {
	return r.Availability != AvailabilityUnreachable
}
