package syncpush

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"inkshelf/internal/ingest"
	"inkshelf/internal/metrics"
	"inkshelf/internal/push"
	"inkshelf/pkg/logging"
	"inkshelf/pkg/models"
)

// Handler accepts full-collection pushes from a local agent.
type Handler struct {
	Store   *Store
	Hub     *push.Hub
	Tokens  TokenService
	Metrics *metrics.Metrics

	log zerolog.Logger
}

func NewHandler(store *Store, hub *push.Hub, tokens TokenService, m *metrics.Metrics) *Handler {
	return &Handler{
		Store:   store,
		Hub:     hub,
		Tokens:  tokens,
		Metrics: m,
		log:     logging.For("sync"),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/sync", h.receive)
	r.POST("/sync/token", h.mintToken)
}

// syncReq is the wire shape the agent sends. Books is a pointer so a
// missing or null field is distinguishable from an explicit empty
// collection, which is a valid "library emptied" push.
type syncReq struct {
	Books  *[]models.RawBook `json:"books"`
	Source string            `json:"source"`
}

func (h *Handler) receive(c *gin.Context) {
	if err := h.Tokens.Authorize(c.GetHeader("Authorization")); err != nil {
		h.reject(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req syncReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Books == nil {
		h.reject(c, http.StatusBadRequest, ErrInvalidFormat.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = models.SourcePushed
	}

	books := ingest.NormalizeAll(*req.Books, time.Now())
	if err := h.Store.Replace(books, source); err != nil {
		h.log.Error().Err(err).Msg("persist snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store snapshot"})
		return
	}

	if h.Metrics != nil {
		h.Metrics.SyncAccepted.Inc()
	}
	_, lastUpdated, _ := h.Store.Current()
	h.log.Info().Int("books", len(books)).Str("source", source).Msg("snapshot replaced")

	if h.Hub != nil {
		h.Hub.BroadcastJSON(push.LibraryUpdated(source, "", len(books)))
	}

	c.JSON(http.StatusOK, gin.H{
		"synced":       len(books),
		"last_updated": lastUpdated.Format(time.RFC3339),
	})
}

// mintToken exchanges the shared secret for a short-lived agent token.
func (h *Handler) mintToken(c *gin.Context) {
	if err := h.Tokens.Authorize(c.GetHeader("Authorization")); err != nil {
		h.reject(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if len(h.Tokens.Secret) == 0 {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "token minting not configured"})
		return
	}

	var req struct {
		Agent string `json:"agent"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Agent == "" {
		req.Agent = "sync-agent"
	}

	token, exp, err := h.Tokens.Mint(req.Agent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mint token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.Format(time.RFC3339),
	})
}

// reject answers without touching any state.
func (h *Handler) reject(c *gin.Context, status int, reason string) {
	if h.Metrics != nil {
		h.Metrics.SyncRejected.WithLabelValues(reason).Inc()
	}
	c.JSON(status, gin.H{"error": reason})
}
