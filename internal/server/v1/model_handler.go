package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowstate-app/gateway/internal/router"
)

type ModelHandler struct {
	router *router.Router
}

func NewModelHandler(r *router.Router) *ModelHandler {
	return &ModelHandler{router: r}
}

// List handles GET /api/models.
func (h *ModelHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.router.AvailableModels(nil)})
}

// Status handles GET /api/models/status: models plus per-provider rate limits.
func (h *ModelHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":     h.router.AvailableModels(nil),
		"rateLimits": h.router.LimitStatus(),
	})
}
