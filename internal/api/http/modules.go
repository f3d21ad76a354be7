package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// InstallRequest installs the module served at CatalogURL
type InstallRequest struct {
	CatalogURL string `json:"catalog_url" binding:"required"`
	Activate   bool   `json:"activate"`
}

// ListModules lists installed modules
func (h *Handlers) ListModules(c *gin.Context) {
	records := h.registry.List()
	c.JSON(http.StatusOK, gin.H{
		"modules": records,
		"count":   len(records),
	})
}

// GetModule returns one module record
func (h *Handlers) GetModule(c *gin.Context) {
	moduleID, ok := moduleID(c)
	if !ok {
		return
	}
	rec, err := h.registry.Get(moduleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": rec})
}

// InstallModule fetches a descriptor and registers its module
func (h *Handlers) InstallModule(c *gin.Context) {
	var req InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	rec, err := h.registry.Install(c.Request.Context(), req.CatalogURL)
	if err != nil {
		h.fail(c, err)
		return
	}

	if req.Activate {
		if rec, err = h.host.Activate(c.Request.Context(), rec.ID); err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"module":  rec,
	})
}

// RemoveModule deletes a module and its cached script
func (h *Handlers) RemoveModule(c *gin.Context) {
	moduleID, ok := moduleID(c)
	if !ok {
		return
	}
	if err := h.registry.Remove(c.Request.Context(), moduleID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"module_id": moduleID,
	})
}

// ActivateModule loads a module and makes it the active one
func (h *Handlers) ActivateModule(c *gin.Context) {
	moduleID, ok := moduleID(c)
	if !ok {
		return
	}
	rec, err := h.host.Activate(c.Request.Context(), moduleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"module":  rec,
	})
}

// RevalidateModule re-downloads a module's script if the cache is bad
func (h *Handlers) RevalidateModule(c *gin.Context) {
	moduleID, ok := moduleID(c)
	if !ok {
		return
	}
	if err := h.registry.RevalidateSync(c.Request.Context(), moduleID); err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.registry.Get(moduleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"module":  rec,
	})
}

// PruneModules deletes cached scripts no module references
func (h *Handlers) PruneModules(c *gin.Context) {
	removed, err := h.registry.Prune()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": removed,
	})
}
