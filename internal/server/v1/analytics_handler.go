package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowstate-app/gateway/internal/analytics"
	"github.com/flowstate-app/gateway/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(s analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: s}
}

// Usage handles GET /api/usage?days=N.
func (h *AnalyticsHandler) Usage(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load usage stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "stats": stats})
}

// Recent handles GET /api/usage/recent?limit=N.
func (h *AnalyticsHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.service.GetRecentRequests(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load request logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": logs})
}
