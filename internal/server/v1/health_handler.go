package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowstate-app/gateway/internal/router"
)

type HealthHandler struct {
	router *router.Router
}

func NewHealthHandler(r *router.Router) *HealthHandler {
	return &HealthHandler{router: r}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	models := h.router.AvailableModels(nil)
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": len(models),
		"models":    models,
	})
}
