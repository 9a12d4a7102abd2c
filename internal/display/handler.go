package display

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkshelf/internal/cache"
	"inkshelf/internal/ingest"
	"inkshelf/internal/metrics"
	"inkshelf/pkg/config"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

const serviceVersion = "1.0.0"

// Key identifies one cacheable display computation: every parameter
// that changes the payload is part of it.
type Key struct {
	Limit            int
	ShowDescriptions bool
	ShowPageCounts   bool
	Source           string
}

// Payload is the full display response. It is always well-formed:
// ingestion failures degrade into the empty-library shape instead of
// error statuses, because the e-ink client renders whatever it gets.
type Payload struct {
	EmptyLibrary    bool         `json:"empty_library"`
	ServerConnected bool         `json:"server_connected"`
	Message         string       `json:"message,omitempty"`
	RecentBooks     []Book       `json:"recent_books"`
	Buckets         Buckets      `json:"buckets"`
	BookSuggestion  *Book        `json:"book_suggestion"`
	LibraryStats    LibraryStats `json:"library_stats"`
	DisplayInfo     DisplayInfo  `json:"display_info"`
}

type LibraryStats struct {
	TotalBooksFound int    `json:"total_books_found"`
	LastSync        string `json:"last_sync"`
	DataSource      string `json:"data_source"`
	ServerURL       string `json:"server_url,omitempty"`
}

type DisplayInfo struct {
	CurrentDate      string `json:"current_date"`
	RecentBooksCount int    `json:"recent_books_count"`
	BookLimitUsed    int    `json:"book_limit_used,omitempty"`
}

// Handler serves the display, info and cache endpoints.
type Handler struct {
	Src     ingest.Source
	Cache   *cache.Cache[Key, Payload]
	Cfg     *config.Config
	Metrics *metrics.Metrics

	log zerolog.Logger
	now func() time.Time
	rng *rand.Rand
}

func NewHandler(src ingest.Source, c *cache.Cache[Key, Payload], cfg *config.Config, m *metrics.Metrics) *Handler {
	return &Handler{
		Src:     src,
		Cache:   c,
		Cfg:     cfg,
		Metrics: m,
		log:     logging.For("display"),
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.home)
	r.GET("/health", h.health)
	r.GET("/debug", h.debug)
	r.GET("/config", h.configDoc)
	r.GET("/calibre-status", h.status)
	r.POST("/calibre-status", h.status)
	r.GET("/trmnl-data", h.status) // legacy endpoint
	r.POST("/trmnl-data", h.status)
	r.POST("/cache/clear", h.clearCache)
}

type statusReq struct {
	BookLimit        int  `json:"book_limit"`
	ShowDescriptions bool `json:"show_descriptions"`
	ShowPageCounts   bool `json:"show_page_counts"`
}

func (h *Handler) parseRequest(c *gin.Context) (int, Options) {
	req := statusReq{BookLimit: h.Cfg.BookLimit}

	if c.Request.Method == http.MethodPost {
		// missing or malformed body keeps defaults
		_ = c.ShouldBindJSON(&req)
	} else {
		if n, err := strconv.Atoi(c.Query("book_limit")); err == nil {
			req.BookLimit = n
		}
		req.ShowDescriptions = c.Query("show_descriptions") == "true"
		req.ShowPageCounts = c.Query("show_page_counts") == "true"
	}

	limit := ClampLimit(req.BookLimit)
	if limit > h.Cfg.MaxBookLimit {
		limit = h.Cfg.MaxBookLimit
	}
	return limit, Options{
		ShowDescriptions: req.ShowDescriptions,
		ShowPageCounts:   req.ShowPageCounts,
	}
}

// status is the main display endpoint.
func (h *Handler) status(c *gin.Context) {
	limit, opts := h.parseRequest(c)
	key := Key{
		Limit:            limit,
		ShowDescriptions: opts.ShowDescriptions,
		ShowPageCounts:   opts.ShowPageCounts,
		Source:           h.Src.Name(),
	}

	payload, hit, err := h.Cache.GetOrCompute(key, h.Cfg.CacheTTL, func() (Payload, error) {
		return h.compute(c, limit, opts), nil
	})
	if err != nil {
		// compute never errors; belt and suspenders for the boundary
		c.JSON(http.StatusOK, h.fallbackPayload())
		return
	}

	if hit {
		h.Metrics.CacheHits.Inc()
	} else {
		h.Metrics.CacheMisses.Inc()
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) compute(c *gin.Context, limit int, opts Options) Payload {
	now := h.now()
	result, err := h.Src.Fetch(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Str("source", h.Src.Name()).Msg("ingestion failed")
		result = ingest.NewResult(h.Src.Name(), nil, models.AvailabilityUnreachable)
	}
	h.Metrics.RecordIngest(result.Source, string(result.Availability))

	payload := Payload{
		ServerConnected: result.Connected(),
		LibraryStats: LibraryStats{
			TotalBooksFound: len(result.Books),
			LastSync:        result.FetchedAt.Format(time.RFC3339),
			DataSource:      result.Source,
			ServerURL:       h.Cfg.BaseURL,
		},
		DisplayInfo: DisplayInfo{
			CurrentDate:   now.Format("01/02"),
			BookLimitUsed: limit,
		},
	}

	if !result.Connected() {
		payload.EmptyLibrary = true
		payload.Message = "Cannot reach the configured library source. Please check your configuration."
		payload.LibraryStats.LastSync = "Server unreachable"
		payload.RecentBooks = []Book{}
		return payload
	}

	if len(result.Books) == 0 {
		payload.EmptyLibrary = true
		payload.Message = "Your library is connected but no recent books were found. Add some books to see them here!"
		payload.RecentBooks = []Book{}
		return payload
	}

	buckets := Partition(result.Books, now, limit, opts)
	all := buckets.All()

	payload.Buckets = buckets
	payload.RecentBooks = all
	payload.BookSuggestion = Suggest(buckets, h.rng)
	payload.DisplayInfo.RecentBooksCount = len(all)
	return payload
}

func (h *Handler) fallbackPayload() Payload {
	return Payload{
		EmptyLibrary:    true,
		ServerConnected: false,
		Message:         "A service error occurred. Please check the logs or try again later.",
		RecentBooks:     []Book{},
		DisplayInfo:     DisplayInfo{CurrentDate: h.now().Format("01/02")},
	}
}

func (h *Handler) probe(c *gin.Context) error {
	prober, ok := h.Src.(ingest.Prober)
	if !ok {
		return nil
	}
	return prober.Probe(c.Request.Context())
}

func (h *Handler) home(c *gin.Context) {
	probeErr := h.probe(c)

	c.JSON(http.StatusOK, gin.H{
		"name":        "inkshelf",
		"version":     serviceVersion,
		"description": "Calibre library metadata service for e-ink displays",
		"source": gin.H{
			"type":       h.Src.Name(),
			"server_url": h.Cfg.BaseURL,
			"library_id": h.Cfg.LibraryID,
			"connected":  probeErr == nil,
		},
		"endpoints": gin.H{
			"/calibre-status": "Main data endpoint for display devices",
			"/trmnl-data":     "Legacy endpoint (backwards compatibility)",
			"/sync":           "Authenticated bulk push from a local agent",
			"/health":         "Service health monitoring",
			"/debug":          "Debug information and connection test",
			"/config":         "Display configuration options",
			"/metrics":        "Prometheus metrics",
		},
		"configuration": gin.H{
			"default_book_limit": h.Cfg.BookLimit,
			"max_book_limit":     h.Cfg.MaxBookLimit,
			"request_timeout":    h.Cfg.RequestTimeout.String(),
			"cache_ttl":          h.Cfg.CacheTTL.String(),
		},
	})
}

func (h *Handler) health(c *gin.Context) {
	probeErr := h.probe(c)
	status := "healthy"
	if probeErr != nil {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": h.now().Format(time.RFC3339),
		"source": gin.H{
			"type":      h.Src.Name(),
			"reachable": probeErr == nil,
		},
		"service_info": gin.H{
			"version":     serviceVersion,
			"data_source": h.Src.Name(),
		},
	})
}

func (h *Handler) debug(c *gin.Context) {
	probeErr := h.probe(c)

	result, err := h.Src.Fetch(c.Request.Context())
	if err != nil {
		result = ingest.NewResult(h.Src.Name(), nil, models.AvailabilityUnreachable)
	}

	sample := result.Books
	if len(sample) > 3 {
		sample = sample[:3]
	}

	probeMsg := "ok"
	if probeErr != nil {
		probeMsg = probeErr.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_test": probeMsg,
		"fetch_test": gin.H{
			"books_found":  len(result.Books),
			"availability": result.Availability,
			"sample_books": sample,
		},
		"configuration": gin.H{
			"source":       h.Cfg.Source,
			"base_url":     h.Cfg.BaseURL,
			"library_id":   h.Cfg.LibraryID,
			"catalog_path": h.Cfg.CatalogPath,
		},
		"timestamp": h.now().Format(time.RFC3339),
	})
}

func (h *Handler) configDoc(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"display_options": gin.H{
			"book_limit": gin.H{
				"default":     h.Cfg.BookLimit,
				"min":         1,
				"max":         h.Cfg.MaxBookLimit,
				"description": "Number of books to display per recency bucket",
			},
			"toggles": []string{"show_descriptions", "show_page_counts"},
			"date_format": gin.H{
				"default":     "MM/DD",
				"description": "How book addition dates are displayed",
			},
		},
		"available_fields": gin.H{
			"basic":    []string{"title", "author", "tags", "rating", "description"},
			"metadata": []string{"series_info", "language", "publisher", "published_date"},
			"file_info": []string{
				"page_count", "page_display", "reading_time", "file_info",
			},
			"computed": []string{
				"date_added", "days_ago", "is_recent", "is_new",
				"has_rating", "has_series",
			},
		},
		"display_features": gin.H{
			"recency_buckets":    true,
			"random_suggestion":  true,
			"page_count_support": true,
			"format_detection":   true,
		},
	})
}

// clearCache empties the result cache so the next request recomputes.
// With demo data there is nothing upstream to refresh, so it reports a
// no-op instead of pretending.
func (h *Handler) clearCache(c *gin.Context) {
	dropped := h.Cache.Clear()

	if h.Src.Name() == models.SourceDemo {
		c.JSON(http.StatusOK, gin.H{
			"cleared": false,
			"message": "demo data is synthetic; nothing to refresh",
		})
		return
	}

	h.log.Info().Int("entries", dropped).Msg("result cache cleared")
	c.JSON(http.StatusOK, gin.H{
		"cleared": true,
		"entries": dropped,
	})
}
