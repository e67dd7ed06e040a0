package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/history"
	"github.com/pagetrail/pagetrail/internal/pages"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	HealthCheck(c *gin.Context)
	ResolvePath(c *gin.Context)
	GetPageHistory(c *gin.Context)
	AddPageHistory(c *gin.Context)
	DeletePageHistory(c *gin.Context)
	DeleteAllHistory(c *gin.Context)
	RebuildSegments(c *gin.Context)
}

type handler struct {
	resolver *history.Resolver
	virtual  *history.VirtualResolver
	recorder *history.Recorder
	repo     pages.Repository
	segments *history.RootSegmentIndex
}

// NewHandler creates a new REST API handler
func NewHandler(
	resolver *history.Resolver,
	virtual *history.VirtualResolver,
	recorder *history.Recorder,
	repo pages.Repository,
	segments *history.RootSegmentIndex,
) Handler {
	return &handler{
		resolver: resolver,
		virtual:  virtual,
		recorder: recorder,
		repo:     repo,
		segments: segments,
	}
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveResponse is the body returned for a successful path resolution
type resolveResponse struct {
	PageID     int64             `json:"page_id"`
	Path       string            `json:"path"`
	LanguageID domain.LanguageID `json:"language_id"`
	Match      domain.MatchKind  `json:"match"`
	Segments   string            `json:"segments,omitempty"`
}

// ResolvePath handles GET /v1/resolve?path=...
//
// Lookup failures are never surfaced as server errors. A path that cannot
// be resolved, for whatever reason, is a 404 so the caller can fall through
// to its own not-found handling.
func (h *handler) ResolvePath(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		respondBadRequest(c, "path query parameter is required")
		return
	}

	page, match := h.resolver.ResolvePath(c.Request.Context(), path)
	if page == nil {
		respondNotFound(c, "no page found for path")
		return
	}

	currentPath, err := h.repo.Path(c.Request.Context(), page, match.LanguageID)
	if err != nil {
		respondInternalError(c, err, "failed to build current page path",
			zap.Int64("page_id", page.ID))
		return
	}

	c.JSON(http.StatusOK, resolveResponse{
		PageID:     page.ID,
		Path:       currentPath,
		LanguageID: match.LanguageID,
		Match:      match.Match,
		Segments:   match.Segments,
	})
}

// GetPageHistory handles GET /v1/pages/:id/history
func (h *handler) GetPageHistory(c *gin.Context) {
	page, ok := h.pageFromParam(c)
	if !ok {
		return
	}

	opts := history.DefaultOptions()
	opts.Verbose = c.Query("verbose") == "true"
	if virtual := c.Query("virtual"); virtual != "" {
		opts.Virtual = virtual == "true"
	}
	if languageParam := c.Query("language"); languageParam != "" {
		value, err := strconv.ParseUint(languageParam, 10, 16)
		if err != nil {
			respondBadRequest(c, "invalid language", err.Error())
			return
		}
		language := domain.LanguageID(value)
		opts.Language = &language
	}

	if opts.Verbose {
		records, err := h.virtual.PathHistory(c.Request.Context(), page, opts)
		if err != nil {
			respondInternalError(c, err, "failed to load page history",
				zap.Int64("page_id", page.ID))
			return
		}
		c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "records": records})
		return
	}

	paths, err := h.virtual.Paths(c.Request.Context(), page, opts)
	if err != nil {
		respondInternalError(c, err, "failed to load page history",
			zap.Int64("page_id", page.ID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "paths": paths})
}

// addHistoryRequest is the body of POST /v1/pages/:id/history
type addHistoryRequest struct {
	Path        string            `json:"path" binding:"required"`
	LanguageID  domain.LanguageID `json:"language_id"`
	ReplaceLive bool              `json:"replace_live"`
}

// AddPageHistory handles POST /v1/pages/:id/history
func (h *handler) AddPageHistory(c *gin.Context) {
	page, ok := h.pageFromParam(c)
	if !ok {
		return
	}

	var request addHistoryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBadRequest(c, "invalid request body", err.Error())
		return
	}

	var (
		added bool
		err   error
	)
	if request.ReplaceLive {
		added, err = h.recorder.SetPathHistory(c.Request.Context(), page, request.Path, request.LanguageID)
	} else {
		added, err = h.recorder.AddPathHistory(c.Request.Context(), page, request.Path, request.LanguageID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			respondBadRequest(c, "failed to add path history", err.Error())
			return
		}
		respondInternalError(c, err, "failed to add path history",
			zap.Int64("page_id", page.ID))
		return
	}

	c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "added": added})
}

// DeletePageHistory handles DELETE /v1/pages/:id/history
//
// With a path query parameter only that entry is removed. Without one the
// page's entire history is cleared.
func (h *handler) DeletePageHistory(c *gin.Context) {
	page, ok := h.pageFromParam(c)
	if !ok {
		return
	}

	if path := c.Query("path"); path != "" {
		deleted, err := h.recorder.DeletePathHistory(c.Request.Context(), page, path)
		if err != nil {
			respondInternalError(c, err, "failed to delete path history",
				zap.Int64("page_id", page.ID))
			return
		}
		c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "deleted": deleted})
		return
	}

	if err := h.recorder.DeleteAllPathHistory(c.Request.Context(), page, false); err != nil {
		respondInternalError(c, err, "failed to delete page history",
			zap.Int64("page_id", page.ID))
		return
	}
	c.JSON(http.StatusOK, gin.H{"page_id": page.ID, "deleted": true})
}

// DeleteAllHistory handles DELETE /v1/history
func (h *handler) DeleteAllHistory(c *gin.Context) {
	if err := h.recorder.DeleteAllPathHistory(c.Request.Context(), nil, true); err != nil {
		respondInternalError(c, err, "failed to delete path history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// RebuildSegments handles POST /v1/history/segments/rebuild
func (h *handler) RebuildSegments(c *gin.Context) {
	segments, err := h.segments.Rebuild(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "failed to rebuild root segment index")
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

// pageFromParam loads the page addressed by the :id route parameter. It
// writes the error response itself and returns ok=false when the page
// cannot be used.
func (h *handler) pageFromParam(c *gin.Context) (*domain.Page, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid page id", err.Error())
		return nil, false
	}

	page, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "failed to load page", zap.Int64("page_id", id))
		return nil, false
	}
	if page == nil {
		respondNotFound(c, "page not found")
		return nil, false
	}
	return page, true
}
