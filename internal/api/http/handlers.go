package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/modhost/internal/api/middleware"
	"github.com/GriffinCanCode/modhost/internal/domain/host"
	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/GriffinCanCode/modhost/internal/domain/registry"
	"github.com/GriffinCanCode/modhost/internal/runtime/sandbox"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *registry.Manager
	host     *host.Host
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(registry *registry.Manager, moduleHost *host.Host, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry: registry,
		host:     moduleHost,
		logger:   logger,
	}
}

// Register mounts every endpoint on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/modules", h.ListModules)
	router.POST("/modules", h.InstallModule)
	router.POST("/modules/prune", h.PruneModules)
	router.GET("/modules/:id", h.GetModule)
	router.DELETE("/modules/:id", h.RemoveModule)
	router.POST("/modules/:id/activate", h.ActivateModule)
	router.POST("/modules/:id/revalidate", h.RevalidateModule)

	router.GET("/search", h.Search)
	router.POST("/chapters", h.Chapters)
	router.POST("/content", h.Content)
	router.POST("/images", h.Images)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "modhost",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	active := gin.H{"loaded": false}
	if rec, ok := h.host.Current(); ok {
		active = gin.H{
			"loaded": true,
			"module": rec.Summary(),
			"state":  h.host.State().String(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"modules": len(h.registry.List()),
		"active":  active,
	})
}

// moduleID reads and validates the :id path parameter
func moduleID(c *gin.Context) (id.ModuleID, bool) {
	raw := c.Param("id")
	if !id.IsValid(raw) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid module id",
		})
		return "", false
	}
	return id.ModuleID(raw), true
}

// fail writes err with the status its class maps to
func (h *Handlers) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c).String()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, module.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, module.ErrAlreadyExists), errors.Is(err, host.ErrNoActiveModule):
		return http.StatusConflict
	case errors.Is(err, module.ErrInvalidName),
		errors.Is(err, module.ErrInvalidCatalogURL),
		errors.Is(err, module.ErrMissingScriptPath):
		return http.StatusBadRequest
	case errors.Is(err, module.ErrDecode),
		errors.Is(err, module.ErrInvalidScriptFormat),
		errors.Is(err, sandbox.ErrScriptLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, module.ErrDownload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
