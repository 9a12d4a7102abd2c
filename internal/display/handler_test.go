package display

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkshelf/internal/cache"
	"inkshelf/internal/ingest"
	"inkshelf/internal/metrics"
	"inkshelf/pkg/config"
	"inkshelf/pkg/models"
)

type fakeSource struct {
	name    string
	result  models.IngestionResult
	fetches int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(context.Context) (models.IngestionResult, error) {
	f.fetches++
	return f.result, nil
}

func newTestHandler(t *testing.T, src ingest.Source) (*Handler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(src, cache.New[Key, Payload](), config.New(), metrics.New(prometheus.NewRegistry()))
	h.now = func() time.Time { return bucketNow }

	r := gin.New()
	h.RegisterRoutes(r)
	return h, r
}

func getPayload(t *testing.T, r *gin.Engine, target string) Payload {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var payload Payload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestStatusPopulated(t *testing.T) {
	src := &fakeSource{
		name: models.SourceCatalog,
		result: models.IngestionResult{
			Books: []models.Book{
				bookAddedDaysAgo(1, 1),
				bookAddedDaysAgo(2, 10),
			},
			FetchedAt:    bucketNow,
			Source:       models.SourceCatalog,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	payload := getPayload(t, r, "/calibre-status")

	assert.False(t, payload.EmptyLibrary)
	assert.True(t, payload.ServerConnected)
	assert.Len(t, payload.RecentBooks, 2)
	assert.Len(t, payload.Buckets.ThisWeek, 1)
	assert.Len(t, payload.Buckets.LastWeek, 1)
	require.NotNil(t, payload.BookSuggestion)
	assert.Equal(t, models.SourceCatalog, payload.LibraryStats.DataSource)
	assert.Equal(t, 2, payload.LibraryStats.TotalBooksFound)
	assert.Equal(t, "06/15", payload.DisplayInfo.CurrentDate)
	assert.Equal(t, 2, payload.DisplayInfo.RecentBooksCount)
}

func TestStatusUnreachableSource(t *testing.T) {
	src := &fakeSource{
		name: models.SourceFeed,
		result: models.IngestionResult{
			FetchedAt:    bucketNow,
			Source:       models.SourceFeed,
			Availability: models.AvailabilityUnreachable,
		},
	}
	_, r := newTestHandler(t, src)

	payload := getPayload(t, r, "/calibre-status")

	assert.True(t, payload.EmptyLibrary)
	assert.False(t, payload.ServerConnected)
	assert.NotEmpty(t, payload.Message)
	assert.Equal(t, "Server unreachable", payload.LibraryStats.LastSync)
	assert.NotNil(t, payload.RecentBooks)
	assert.Empty(t, payload.RecentBooks)
	assert.Nil(t, payload.BookSuggestion)
}

func TestStatusEmptyLibrary(t *testing.T) {
	src := &fakeSource{
		name: models.SourceFeed,
		result: models.IngestionResult{
			Books:        []models.Book{},
			FetchedAt:    bucketNow,
			Source:       models.SourceFeed,
			Availability: models.AvailabilityEmpty,
		},
	}
	_, r := newTestHandler(t, src)

	payload := getPayload(t, r, "/calibre-status")

	assert.True(t, payload.EmptyLibrary)
	assert.True(t, payload.ServerConnected, "empty is still connected")
	assert.Contains(t, payload.Message, "no recent books")
}

func TestStatusClampsLimit(t *testing.T) {
	src := &fakeSource{
		name: models.SourceDemo,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceDemo,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	payload := getPayload(t, r, "/calibre-status?book_limit=200")
	assert.Equal(t, MaxLimit, payload.DisplayInfo.BookLimitUsed)

	payload = getPayload(t, r, "/calibre-status?book_limit=-3")
	assert.Equal(t, DefaultLimit, payload.DisplayInfo.BookLimitUsed)
}

func TestStatusPostBody(t *testing.T) {
	src := &fakeSource{
		name: models.SourceDemo,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceDemo,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	body := strings.NewReader(`{"book_limit": 5, "show_descriptions": true}`)
	req := httptest.NewRequest(http.MethodPost, "/calibre-status", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload Payload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, 5, payload.DisplayInfo.BookLimitUsed)
}

func TestStatusCachesWithinTTL(t *testing.T) {
	src := &fakeSource{
		name: models.SourceCatalog,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceCatalog,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	getPayload(t, r, "/calibre-status")
	getPayload(t, r, "/calibre-status")
	assert.Equal(t, 1, src.fetches, "second request within TTL is a cache hit")

	// a different limit is a different cache key
	getPayload(t, r, "/calibre-status?book_limit=5")
	assert.Equal(t, 2, src.fetches)
}

func TestLegacyEndpointAlias(t *testing.T) {
	src := &fakeSource{
		name: models.SourceDemo,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceDemo,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	payload := getPayload(t, r, "/trmnl-data")
	assert.False(t, payload.EmptyLibrary)
}

func TestClearCache(t *testing.T) {
	src := &fakeSource{
		name: models.SourceCatalog,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceCatalog,
			Availability: models.AvailabilityPopulated,
		},
	}
	h, r := newTestHandler(t, src)

	getPayload(t, r, "/calibre-status")
	require.Equal(t, 1, h.Cache.Len())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["cleared"])
	assert.Equal(t, 0, h.Cache.Len())

	getPayload(t, r, "/calibre-status")
	assert.Equal(t, 2, src.fetches, "cleared cache forces a refetch")
}

func TestClearCacheDemoReportsNoop(t *testing.T) {
	src := &fakeSource{
		name: models.SourceDemo,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceDemo,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["cleared"])
}

func TestInfoEndpoints(t *testing.T) {
	src := &fakeSource{
		name: models.SourceDemo,
		result: models.IngestionResult{
			Books:        []models.Book{bookAddedDaysAgo(1, 1)},
			FetchedAt:    bucketNow,
			Source:       models.SourceDemo,
			Availability: models.AvailabilityPopulated,
		},
	}
	_, r := newTestHandler(t, src)

	for _, path := range []string{"/", "/health", "/debug", "/config"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.True(t, json.Valid(w.Body.Bytes()), path)
	}
}
