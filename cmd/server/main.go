package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inkshelf/internal/cache"
	"inkshelf/internal/catalog"
	"inkshelf/internal/display"
	"inkshelf/internal/ingest"
	"inkshelf/internal/metrics"
	"inkshelf/internal/opds"
	"inkshelf/internal/push"
	"inkshelf/internal/syncpush"
	"inkshelf/pkg/config"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.For("main")
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	log := logging.For("main")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// The snapshot store always runs so a local agent can push even
	// when another source drives the display.
	store := syncpush.NewStore(cfg.DataPath)
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("snapshot load failed, starting empty")
	}

	src := buildSource(cfg, store)
	log.Info().Str("source", src.Name()).Msg("ingestion source selected")

	hub := push.NewHub(m)
	var tcpSrv *push.Server
	if cfg.PushAddr != "" {
		tcpSrv = push.NewServer(cfg.PushAddr, hub)
	}

	tokens := syncpush.TokenService{
		Token:     cfg.SyncToken,
		TokenHash: cfg.SyncTokenHash,
		Secret:    []byte(cfg.SyncToken),
		Issuer:    "inkshelf",
		Duration:  24 * time.Hour,
	}
	if !tokens.Enabled() {
		log.Warn().Msg("no sync token configured, push endpoint disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(requestLogger(), gin.CustomRecovery(func(c *gin.Context, rec any) {
		l := logging.For("http")
		l.Error().Interface("panic", rec).Str("path", c.Request.URL.Path).Msg("handler panicked")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"message": "A service error occurred. Please check the logs or try again later.",
		})
	}))

	displayHandler := display.NewHandler(src, cache.New[display.Key, display.Payload](), cfg, m)
	displayHandler.RegisterRoutes(router)

	syncHandler := syncpush.NewHandler(store, hub, tokens, m)
	syncHandler.RegisterRoutes(router)

	router.GET("/ws", push.WSHandler(hub))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		if prober, ok := src.(ingest.Prober); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := prober.Probe(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":       "not_ready",
					"source_error": err.Error(),
					"tcp_clients":  stats.TCPClients,
					"ws_clients":   stats.WSClients,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"source":      src.Name(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
			"available_endpoints": []string{
				"/", "/health", "/ready", "/debug", "/config",
				"/calibre-status", "/trmnl-data", "/sync", "/ws", "/metrics",
			},
		})
	})

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if tcpSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tcpSrv.Run(); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if tcpSrv != nil {
		if err := tcpSrv.Close(); err != nil {
			log.Error().Err(err).Msg("tcp shutdown error")
		}
	}

	wg.Wait()
	log.Info().Msg("servers stopped")
}

// buildSource picks the ingestion source the display reads from.
func buildSource(cfg *config.Config, store *syncpush.Store) ingest.Source {
	switch cfg.Source {
	case models.SourceCatalog:
		return catalog.NewSource(cfg.CatalogPath, cfg.MaxBookLimit)
	case models.SourcePushed:
		return store
	case models.SourceDemo:
		return ingest.NewDemoSource()
	default:
		return opds.NewSource(opds.NewClient(cfg.BaseURL, cfg.LibraryID, cfg.RequestTimeout))
	}
}

// requestLogger is a minimal access log on the structured logger.
func requestLogger() gin.HandlerFunc {
	log := logging.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
