package opds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

// ErrUnavailable means no candidate endpoint produced a parsable feed:
// host down, non-2xx everywhere, or broken XML across the board. It is
// deliberately distinct from a valid feed that holds zero books.
var ErrUnavailable = errors.New("opds: feed unavailable")

// maxBodySize caps feed downloads; a recent-books feed is small and
// anything bigger is a misconfigured endpoint.
const maxBodySize = 8 << 20

// Client walks the known Calibre-web OPDS endpoints for recently
// added books.
type Client struct {
	BaseURL   string
	LibraryID string
	HTTP      *http.Client
	log       zerolog.Logger
}

func NewClient(baseURL, libraryID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:   baseURL,
		LibraryID: libraryID,
		HTTP:      &http.Client{Timeout: timeout},
		log:       logging.For("opds"),
	}
}

// candidateURLs lists the direct "recently added" endpoints, tried in
// order before falling back to root navigation.
func (c *Client) candidateURLs() []string {
	paths := []string{"/opds/new", "/opds/recentbooks", "/opds/newest"}
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, c.feedURL(p))
	}
	return urls
}

func (c *Client) feedURL(path string) string {
	u := c.BaseURL + path
	if c.LibraryID != "" {
		u += "?library_id=" + url.QueryEscape(c.LibraryID)
	}
	return u
}

// Fetch returns the raw book entries of the first endpoint that yields
// any. A reachable feed with zero book entries returns an empty
// non-nil slice; total failure returns ErrUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]models.RawBook, error) {
	sawValidFeed := false

	for _, u := range c.candidateURLs() {
		raws, ok := c.tryFeed(ctx, u)
		if !ok {
			continue
		}
		sawValidFeed = true
		if len(raws) > 0 {
			c.log.Info().Int("books", len(raws)).Str("url", u).Msg("direct endpoint yielded books")
			return raws, nil
		}
	}

	// no direct endpoint worked; walk the root navigation once
	if raws, ok := c.fetchViaNavigation(ctx); ok {
		return raws, nil
	}

	if sawValidFeed {
		return []models.RawBook{}, nil
	}
	return nil, ErrUnavailable
}

// fetchViaNavigation fetches the root catalog and follows a single
// "newest"-flavored navigation link.
func (c *Client) fetchViaNavigation(ctx context.Context) ([]models.RawBook, bool) {
	body, err := c.get(ctx, c.feedURL("/opds"))
	if err != nil {
		c.log.Warn().Err(err).Msg("root catalog fetch failed")
		return nil, false
	}

	newest := findNewestLink(body, c.BaseURL)
	if newest == "" {
		return nil, false
	}

	raws, ok := c.tryFeed(ctx, newest)
	if !ok || len(raws) == 0 {
		return nil, false
	}
	c.log.Info().Int("books", len(raws)).Str("url", newest).Msg("navigation fallback yielded books")
	return raws, true
}

// tryFeed fetches and parses one feed URL. ok reports whether the
// endpoint produced a valid feed at all.
func (c *Client) tryFeed(ctx context.Context, u string) ([]models.RawBook, bool) {
	body, err := c.get(ctx, u)
	if err != nil {
		c.log.Warn().Err(err).Str("url", u).Msg("feed endpoint failed")
		return nil, false
	}

	feed, err := parseFeed(body)
	if err != nil {
		c.log.Warn().Err(err).Str("url", u).Msg("feed did not parse")
		return nil, false
	}
	return booksFromFeed(feed), true
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, u)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Probe checks that the server answers on its OPDS root.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.get(ctx, c.feedURL("/opds"))
	return err
}
