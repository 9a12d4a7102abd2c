package push

import "time"

// LibraryEvent is broadcast to every connected display client whenever
// the book collection changes, so devices can refresh without polling.
type LibraryEvent struct {
	Type       string    `json:"type"` // "library.updated"
	Source     string    `json:"source"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	TotalBooks int       `json:"total_books"`
	At         time.Time `json:"at"`
}

// LibraryUpdated builds the standard change event.
func LibraryUpdated(source, snapshotID string, totalBooks int) LibraryEvent {
	return LibraryEvent{
		Type:       "library.updated",
		Source:     source,
		SnapshotID: snapshotID,
		TotalBooks: totalBooks,
		At:         time.Now(),
	}
}
