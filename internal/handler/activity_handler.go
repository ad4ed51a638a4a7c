package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	activityService service.ActivityService
}

func NewActivityHandler(activityService service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/activity-logs")
	group.Use(middleware.RequireAuth())
	{
		group.GET("", h.ListActivityLogs)
	}
}

// ListActivityLogs returns the global activity feed, newest first
// @Summary      List activity logs
// @Description  Retrieves the append-only activity trail across all orders
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ActivityResponse}
// @Router       /api/activity-logs [get]
func (h *ActivityHandler) ListActivityLogs(c *gin.Context) {
	logs, err := h.activityService.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}
