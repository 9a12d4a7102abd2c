package opds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:dc="http://purl.org/dc/terms/"
      xmlns:opds="http://opds-spec.org/2010/catalog">
  <title>Recently added</title>
  <entry>
    <title>Piranesi</title>
    <id>urn:uuid:book-1</id>
    <updated>2025-06-10T08:00:00+00:00</updated>
    <author><name>Susanna Clarke</name></author>
    <contributor><name>A Translator</name></contributor>
    <summary>The house with infinite halls.</summary>
    <content type="xhtml"><div xmlns="http://www.w3.org/1999/xhtml">Rating: 8<br/>245 pages</div></content>
    <category term="Fantasy" label="Fantasy"/>
    <category term="Book" label="Book"/>
    <dc:language>en</dc:language>
    <dc:publisher>Bloomsbury</dc:publisher>
    <dc:series>Standalone</dc:series>
    <dc:identifier>isbn:9781635575633</dc:identifier>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/download/1.epub" length="501760"/>
    <link type="application/pdf" href="/download/1.pdf" length="1048576"/>
    <link rel="http://opds-spec.org/image" type="image/jpeg" href="/cover/1.jpg"/>
    <link rel="http://opds-spec.org/image/thumbnail" type="image/jpeg" href="/thumb/1.jpg"/>
  </entry>
  <entry>
    <title>By Authors</title>
    <id>urn:nav:authors</id>
    <link rel="subsection" type="application/atom+xml;profile=opds-catalog;kind=navigation" href="/opds/authors"/>
  </entry>
</feed>`

const navFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Catalog root</title>
  <entry>
    <title>By Authors</title>
    <id>urn:nav:authors</id>
    <link type="application/atom+xml;type=feed;profile=opds-catalog" href="/opds/authors"/>
  </entry>
  <entry>
    <title>By Newest</title>
    <id>urn:nav:newest</id>
    <link type="application/atom+xml;type=feed;profile=opds-catalog" href="/opds/navcatalog/4f6e"/>
  </entry>
</feed>`

func TestBooksFromFeedSkipsNavigationEntries(t *testing.T) {
	feed, err := parseFeed([]byte(bookFeedXML))
	require.NoError(t, err)
	require.Len(t, feed.Entries, 2)

	raws := booksFromFeed(feed)
	require.Len(t, raws, 1, "navigation entry must be skipped")
	assert.Equal(t, "Piranesi", raws[0].Title)
}

func TestEntryExtraction(t *testing.T) {
	feed, err := parseFeed([]byte(bookFeedXML))
	require.NoError(t, err)

	raw := booksFromFeed(feed)[0]
	assert.Equal(t, "urn:uuid:book-1", raw.SourceKey)
	assert.Equal(t, "Susanna Clarke", raw.Author)
	assert.Equal(t, []string{"A Translator"}, raw.Contributors)
	assert.Equal(t, "2025-06-10T08:00:00+00:00", raw.Timestamp)
	assert.Equal(t, "The house with infinite halls.", raw.Description)
	assert.Equal(t, []string{"Fantasy", "Book"}, raw.Tags, "generic filter happens in the normalizer")
	assert.Equal(t, "en", raw.Language)
	assert.Equal(t, "Bloomsbury", raw.Publisher)
	assert.Equal(t, "Standalone", raw.Series)
	assert.Equal(t, []string{"isbn:9781635575633"}, raw.Identifiers)

	// rating and page count from free-text content markers
	assert.Equal(t, float64(8), raw.Rating)
	require.NotNil(t, raw.PageCount)
	assert.Equal(t, 245, *raw.PageCount)

	assert.ElementsMatch(t, []string{"EPUB", "PDF"}, raw.Formats)
	assert.Equal(t, int64(1048576), raw.FileSize, "largest link length wins")
	assert.Equal(t, "/cover/1.jpg", raw.CoverURL)
	assert.Equal(t, "/thumb/1.jpg", raw.ThumbnailURL)
	assert.Equal(t, "/download/1.epub", raw.DownloadURL)
}

func TestExtractRatingPrefersDCElement(t *testing.T) {
	const withDC = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:dc="http://purl.org/dc/terms/">
  <entry>
    <title>Rated</title><id>r</id>
    <dc:rating>9</dc:rating>
    <content>Rating: 2</content>
    <link rel="http://opds-spec.org/acquisition" type="application/epub+zip" href="/d.epub"/>
  </entry>
</feed>`

	feed, err := parseFeed([]byte(withDC))
	require.NoError(t, err)
	raws := booksFromFeed(feed)
	require.Len(t, raws, 1)
	assert.Equal(t, float64(9), raws[0].Rating)
}

func TestFindNewestLink(t *testing.T) {
	got := findNewestLink([]byte(navFeedXML), "http://calibre.local:8083")
	assert.Equal(t, "http://calibre.local:8083/opds/navcatalog/4f6e", got)

	assert.Empty(t, findNewestLink([]byte(bookFeedXML), "http://calibre.local:8083"))
	assert.Empty(t, findNewestLink([]byte("not xml"), "http://calibre.local:8083"))
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	_, err := parseFeed([]byte("<html>not a feed"))
	assert.Error(t, err)
}
