package display

import (
	"math/rand"
	"time"

	"inkshelf/pkg/models"
)

// Bucket cap bounds. Requests outside the range are clamped, never
// rejected; the display client should always get a payload.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Buckets partitions a snapshot by how recently each book was added.
// The three slices are disjoint and exhaustive over the input, each
// capped independently; overflow within a bucket is dropped rather
// than carried over.
type Buckets struct {
	ThisWeek []Book `json:"this_week"`
	LastWeek []Book `json:"last_week"`
	Earlier  []Book `json:"earlier"`
}

// ClampLimit normalizes a requested per-bucket limit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Partition buckets and formats books against now. Indexes run 1..N
// inside each bucket, assigned after capping.
func Partition(books []models.Book, now time.Time, limit int, opts Options) Buckets {
	limit = ClampLimit(limit)
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var buckets Buckets
	for _, book := range books {
		switch {
		case !book.AddedAt.Before(weekAgo):
			buckets.ThisWeek = appendCapped(buckets.ThisWeek, book, now, limit, opts)
		case !book.AddedAt.Before(twoWeeksAgo):
			buckets.LastWeek = appendCapped(buckets.LastWeek, book, now, limit, opts)
		default:
			buckets.Earlier = appendCapped(buckets.Earlier, book, now, limit, opts)
		}
	}
	return buckets
}

func appendCapped(bucket []Book, book models.Book, now time.Time, limit int, opts Options) []Book {
	if len(bucket) >= limit {
		return bucket
	}
	row := formatBook(book, now, opts)
	row.Index = len(bucket) + 1
	return append(bucket, row)
}

// All returns the union of the capped buckets in recency order.
func (b Buckets) All() []Book {
	out := make([]Book, 0, len(b.ThisWeek)+len(b.LastWeek)+len(b.Earlier))
	out = append(out, b.ThisWeek...)
	out = append(out, b.LastWeek...)
	out = append(out, b.Earlier...)
	return out
}

// Suggest draws uniformly from the union of the capped buckets; nil
// when there is nothing to suggest.
func Suggest(b Buckets, rng *rand.Rand) *Book {
	all := b.All()
	if len(all) == 0 {
		return nil
	}
	pick := all[rng.Intn(len(all))]
	return &pick
}
