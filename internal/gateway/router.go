package gateway

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

// NewRouter builds the gin engine with every route registered
func NewRouter(workspace *session.Workspace, backend kvstore.Backend, adapter llm.Adapter, logger *zap.Logger) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := RegisterValidators(workspace.Catalog()); err != nil {
		return nil, err
	}

	handler := NewHandler(workspace, backend, adapter, logger)
	stream := NewProgressStream(workspace, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	// Health checks stay at the root
	router.GET("/health", handler.Health)
	router.GET("/ready", handler.Ready)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.GET("/health", handler.Health)

	api.GET("/intentions", handler.ListIntentions)

	// Workspace
	api.GET("/session", handler.GetSession)
	api.PUT("/session/source", handler.SetSource)
	api.POST("/session/sample", handler.LoadSample)
	api.POST("/session/reset", handler.Reset)
	api.POST("/session/reload", handler.ReloadSession)
	api.PUT("/session/intentions", handler.SetIntentions)
	api.DELETE("/session/intentions", handler.ClearIntentions)
	api.POST("/session/intentions/all", handler.SelectAll)
	api.POST("/session/intentions/:id/toggle", handler.ToggleIntention)

	// Runs
	api.GET("/harmonize/readiness", handler.Readiness)
	api.POST("/harmonize", handler.Harmonize)
	api.GET("/ws/harmonize", stream.StreamHarmonize)

	// Audit
	api.GET("/audit", handler.GetAudit)
	api.GET("/audit/export", handler.ExportAudit)
	api.POST("/audit/rollback", handler.Rollback)

	return router, nil
}
