package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/dashboard")
	group.Use(middleware.RequireAuth())
	{
		group.GET("/stats", h.GetOrderStats)
	}
}

// GetOrderStats returns order counts by status for the dashboard
// @Summary      Get dashboard stats
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.OrderStats}
// @Router       /api/dashboard/stats [get]
func (h *StatisticsHandler) GetOrderStats(c *gin.Context) {
	stats, err := h.statisticsService.GetOrderStats(c.Request.Context())
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
