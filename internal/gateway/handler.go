package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/audit"
	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
	"github.com/bizmatters/code-harmonizer/internal/models"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

// adapterCheckTimeout bounds the language model health check in Ready
const adapterCheckTimeout = 2 * time.Second

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	workspace *session.Workspace
	backend   kvstore.Backend
	adapter   llm.Adapter
	now       func() time.Time
	logger    *zap.Logger
}

// NewHandler creates a new gateway handler. adapter is only consulted by
// Ready and may be nil.
func NewHandler(workspace *session.Workspace, backend kvstore.Backend, adapter llm.Adapter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		workspace: workspace,
		backend:   backend,
		adapter:   adapter,
		now:       time.Now,
		logger:    logger,
	}
}

// IntentionsResponse lists the catalog flat and grouped by category
type IntentionsResponse struct {
	Intentions []intentions.Intention `json:"intentions"`
	Groups     []intentions.Group     `json:"groups"`
}

// SetSourceRequest replaces the workspace source
type SetSourceRequest struct {
	SourceCode *string `json:"sourceCode" binding:"required"`
}

// SetIntentionsRequest replaces the selection
type SetIntentionsRequest struct {
	Intentions []string `json:"intentions" binding:"dive,intention"`
}

// HarmonizeRequest optionally updates the workspace before running
type HarmonizeRequest struct {
	SourceCode *string  `json:"sourceCode,omitempty"`
	Intentions []string `json:"intentions,omitempty" binding:"omitempty,dive,intention"`
}

// ToggleResponse reports the selection after a toggle
type ToggleResponse struct {
	ID        string   `json:"id"`
	Selected  bool     `json:"selected"`
	Selection []string `json:"selection"`
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks that the kv backend is reachable. When the language model
// @Description adapter can be health checked its state is reported as "llm";
// @Description an unhealthy model does not fail readiness since runs fall back to the mock.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("kv backend not reachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  "kv backend unavailable",
		})
		return
	}

	body := gin.H{"status": "ready"}
	if hc, ok := h.adapter.(llm.HealthChecker); ok {
		checkCtx, cancel := context.WithTimeout(ctx, adapterCheckTimeout)
		healthy := hc.IsHealthy(checkCtx)
		cancel()
		body["llm"] = "healthy"
		if !healthy {
			h.logger.Warn("language model adapter unhealthy, runs will use the fallback")
			body["llm"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

// ListIntentions godoc
// @Summary List intentions
// @Description Returns the intention catalog in display order and grouped by category
// @Tags intentions
// @Produce json
// @Success 200 {object} IntentionsResponse
// @Router /intentions [get]
func (h *Handler) ListIntentions(c *gin.Context) {
	catalog := h.workspace.Catalog()
	c.JSON(http.StatusOK, IntentionsResponse{
		Intentions: catalog.List(),
		Groups:     catalog.Grouped(),
	})
}

// GetSession godoc
// @Summary Get workspace
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /session [get]
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// SetSource godoc
// @Summary Replace source code
// @Tags session
// @Accept json
// @Produce json
// @Param request body SetSourceRequest true "Source code"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} models.ErrorResponse
// @Router /session/source [put]
func (h *Handler) SetSource(c *gin.Context) {
	var req SetSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	h.workspace.SetSource(c.Request.Context(), *req.SourceCode)
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// SetIntentions godoc
// @Summary Replace selected intentions
// @Tags session
// @Accept json
// @Produce json
// @Param request body SetIntentionsRequest true "Intention ids"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} models.ErrorResponse
// @Router /session/intentions [put]
func (h *Handler) SetIntentions(c *gin.Context) {
	var req SetIntentionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if err := h.workspace.SetSelection(c.Request.Context(), req.Intentions); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// ToggleIntention godoc
// @Summary Toggle one intention
// @Tags session
// @Produce json
// @Param id path string true "Intention ID"
// @Success 200 {object} ToggleResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /session/intentions/{id}/toggle [post]
func (h *Handler) ToggleIntention(c *gin.Context) {
	id := c.Param("id")
	selected, err := h.workspace.Toggle(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, ToggleResponse{
		ID:        id,
		Selected:  selected,
		Selection: h.workspace.Selection(),
	})
}

// SelectAll godoc
// @Summary Select every intention
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /session/intentions/all [post]
func (h *Handler) SelectAll(c *gin.Context) {
	h.workspace.SelectAll(c.Request.Context())
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// ClearIntentions godoc
// @Summary Clear the selection
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /session/intentions [delete]
func (h *Handler) ClearIntentions(c *gin.Context) {
	h.workspace.ClearAll(c.Request.Context())
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// LoadSample godoc
// @Summary Load the sample source code
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /session/sample [post]
func (h *Handler) LoadSample(c *gin.Context) {
	h.workspace.LoadSample(c.Request.Context())
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// Reset godoc
// @Summary Reset the workspace
// @Description Clears source, selection, output and audit record
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /session/reset [post]
func (h *Handler) Reset(c *gin.Context) {
	h.workspace.Reset(c.Request.Context())
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// ReloadSession godoc
// @Summary Reload the workspace from storage
// @Description Re-reads source, selection and audit record written by another process sharing the kv backend
// @Tags session
// @Produce json
// @Success 200 {object} session.Snapshot
// @Failure 409 {object} models.ErrorResponse
// @Router /session/reload [post]
func (h *Handler) ReloadSession(c *gin.Context) {
	if err := h.workspace.Reload(c.Request.Context()); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

// Readiness godoc
// @Summary Check whether a run can start
// @Tags harmonize
// @Produce json
// @Success 200 {object} harmonization.Readiness
// @Router /harmonize/readiness [get]
func (h *Handler) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, h.workspace.Readiness())
}

// Harmonize godoc
// @Summary Run a harmonization
// @Description Optionally replaces source and intentions, then runs the pipeline to completion
// @Tags harmonize
// @Accept json
// @Produce json
// @Param request body HarmonizeRequest false "Workspace overrides"
// @Success 200 {object} harmonization.Result
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /harmonize [post]
func (h *Handler) Harmonize(c *gin.Context) {
	ctx := c.Request.Context()

	var overrides session.Overrides
	if c.Request.ContentLength != 0 {
		var req HarmonizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.bindError(c, err)
			return
		}
		overrides = session.Overrides{SourceCode: req.SourceCode, Intentions: req.Intentions}
	}

	result, err := h.workspace.HarmonizeWith(ctx, overrides, nil)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAudit godoc
// @Summary Get the current audit record
// @Tags audit
// @Produce json
// @Success 200 {object} audit.Entry
// @Failure 404 {object} models.ErrorResponse
// @Router /audit [get]
func (h *Handler) GetAudit(c *gin.Context) {
	entry, ok := h.workspace.Audit().Current()
	if !ok {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "No audit record", nil)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ExportAudit godoc
// @Summary Download the audit record
// @Description Exports the record with harmonized code and export timestamp
// @Tags audit
// @Produce json
// @Produce application/yaml
// @Param format query string false "json or yaml" default(json)
// @Success 200 {object} audit.Document
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /audit/export [get]
func (h *Handler) ExportAudit(c *gin.Context) {
	format, err := audit.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeUnsupportedFormat, err.Error(), nil)
		return
	}

	export, err := h.workspace.Audit().Export(format, h.now())
	if err != nil {
		if errors.Is(err, audit.ErrNoRecord) {
			respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "No audit record", nil)
			return
		}
		h.logger.Error("audit export failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to export audit record", nil)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Header("Content-Length", strconv.Itoa(len(export.Data)))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

// Rollback godoc
// @Summary Discard the last result
// @Description Clears the audit record and harmonized code; the source is kept
// @Tags audit
// @Produce json
// @Success 200 {object} session.Snapshot
// @Router /audit/rollback [post]
func (h *Handler) Rollback(c *gin.Context) {
	h.workspace.Rollback(c.Request.Context())
	c.JSON(http.StatusOK, h.workspace.Snapshot())
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	var notReady *harmonization.NotReadyError
	var unknown *session.UnknownIntentionError
	switch {
	case errors.As(err, &notReady):
		respondError(c, http.StatusConflict, models.ErrCodeNotReady, notReady.Readiness.Message,
			map[string]string{"reason": notReady.Readiness.Reason})
	case errors.Is(err, session.ErrRunInProgress):
		respondError(c, http.StatusConflict, models.ErrCodeRunInProgress, "A harmonization is already running", nil)
	case errors.As(err, &unknown):
		respondError(c, http.StatusBadRequest, models.ErrCodeUnknownIntention, unknown.Error(), nil)
	default:
		h.logger.Error("request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Internal error", nil)
	}
}

func respondError(c *gin.Context, status int, code, message string, details map[string]string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
