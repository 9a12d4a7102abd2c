package opds

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkshelf/pkg/models"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, "Calibre_Library", 2*time.Second)
}

func TestFetchDirectEndpoint(t *testing.T) {
	var gotLibraryID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/opds/new" {
			gotLibraryID = r.URL.Query().Get("library_id")
			_, _ = w.Write([]byte(bookFeedXML))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Piranesi", raws[0].Title)
	assert.Equal(t, "Calibre_Library", gotLibraryID)
}

func TestFetchFallsBackThroughCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/opds/new", "/opds/recentbooks":
			http.Error(w, "nope", http.StatusInternalServerError)
		case "/opds/newest":
			_, _ = w.Write([]byte(bookFeedXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, raws, 1)
}

func TestFetchNavigationFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/opds":
			_, _ = w.Write([]byte(navFeedXML))
		case "/opds/navcatalog/4f6e":
			_, _ = w.Write([]byte(bookFeedXML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).Fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "Piranesi", raws[0].Title)
}

func TestFetchAllEndpointsDownIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).Fetch(t.Context())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, raws)
}

func TestFetchValidButBooklessFeedIsEmptyNotUnavailable(t *testing.T) {
	const emptyFeed = `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(emptyFeed))
	}))
	defer srv.Close()

	raws, err := testClient(srv.URL).Fetch(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, raws)
	assert.Empty(t, raws)
}

func TestSourceFetchTriState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/opds/new" {
			_, _ = w.Write([]byte(bookFeedXML))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewSource(testClient(srv.URL))
	result, err := src.Fetch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.SourceFeed, result.Source)
	assert.Equal(t, models.AvailabilityPopulated, result.Availability)
	require.Len(t, result.Books, 1)

	book := result.Books[0]
	assert.Equal(t, float64(4), book.RatingValue, "feed 'Rating: 8' halves to 4")
	assert.Equal(t, 4, book.Rating)
	assert.Equal(t, []string{"Fantasy"}, book.Tags, "generic Book label filtered")

	srv.Close()
	down, err := src.Fetch(t.Context())
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityUnreachable, down.Availability)
	assert.False(t, down.Connected())
}
