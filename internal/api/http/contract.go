package http

import (
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/modhost/internal/runtime/runner"
	"github.com/gin-gonic/gin"
)

// ParamsRequest carries the opaque params passed to a guest function
type ParamsRequest struct {
	Params interface{} `json:"params"`
}

// Search runs the active module's search
func (h *Handlers) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "q is required",
		})
		return
	}

	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "page must be a non-negative integer",
			})
			return
		}
		page = n
	}

	r, ok := h.runner(c)
	if !ok {
		return
	}
	results, ok := r.Search(c.Request.Context(), query, page)
	if !ok {
		noResult(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}

// Chapters runs the active module's getChapters
func (h *Handlers) Chapters(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	r, ok := h.runner(c)
	if !ok {
		return
	}
	result, ok := r.ListChapters(c.Request.Context(), params)
	if !ok {
		noResult(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// Content runs the active module's getContentData
func (h *Handlers) Content(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	r, ok := h.runner(c)
	if !ok {
		return
	}
	result, ok := r.FetchContent(c.Request.Context(), params)
	if !ok {
		noResult(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// Images runs the active module's getChapterImages
func (h *Handlers) Images(c *gin.Context) {
	params, ok := bindParams(c)
	if !ok {
		return
	}
	r, ok := h.runner(c)
	if !ok {
		return
	}
	images, ok := r.ListChapterImages(c.Request.Context(), params)
	if !ok {
		noResult(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  images,
	})
}

func (h *Handlers) runner(c *gin.Context) (*runner.Runner, bool) {
	r, _, err := h.host.Runner(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return r, true
}

func bindParams(c *gin.Context) (interface{}, bool) {
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	var req ParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return nil, false
	}
	return req.Params, true
}

func noResult(c *gin.Context) {
	c.JSON(http.StatusBadGateway, gin.H{
		"success": false,
		"error":   "module returned no result",
	})
}
