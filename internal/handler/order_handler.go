package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/apperr"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type OrderHandler struct {
	orderService    service.OrderService
	activityService service.ActivityService
}

func NewOrderHandler(orderService service.OrderService, activityService service.ActivityService) *OrderHandler {
	return &OrderHandler{orderService: orderService, activityService: activityService}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/orders")
	orders.Use(middleware.RequireAuth())
	{
		orders.GET("", h.ListOrders)
		orders.POST("", h.CreateOrder)
		orders.PUT("/:id", h.ReplaceOrder)
		orders.DELETE("/:id", h.DeleteOrder)
		orders.POST("/:id/approve", h.ApproveOrder)
		orders.POST("/:id/reject", h.RejectOrder)
		orders.POST("/:id/pay", h.MarkOrderPaid)
		orders.GET("/:id/activity", h.GetOrderActivity)
	}
}

// actorFrom rebuilds the acting identity from the auth middleware context
func actorFrom(c *gin.Context) service.Actor {
	id, _ := uuid.Parse(c.GetString(middleware.CtxUserID))
	return service.Actor{
		ID:   id,
		Name: c.GetString(middleware.CtxUserName),
		Role: c.GetString(middleware.CtxUserRole),
	}
}

// ListOrders returns all orders newest first with creator, items, and approver
// @Summary      List orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.OrderResponse}
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.List(c.Request.Context())
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, orders))
}

// CreateOrder creates a new pending order for the sales actor
// @Summary      Create order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        order  body      service.OrderRequest  true  "Order payload"
// @Success      201    {object}  response.Response{data=service.OrderResponse}
// @Failure      403    {object}  response.Response
// @Failure      422    {object}  response.Response
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ReplaceOrder replaces the order's customer and entire item set
// @Summary      Replace order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id     path      string                true  "Order ID"
// @Param        order  body      service.OrderRequest  true  "Order payload"
// @Success      200    {object}  response.Response{data=service.OrderResponse}
// @Failure      403    {object}  response.Response
// @Failure      404    {object}  response.Response
// @Failure      422    {object}  response.Response
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) ReplaceOrder(c *gin.Context) {
	var req service.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	order, err := h.orderService.Replace(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// DeleteOrder removes the order and its items
// @Summary      Delete order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.orderService.Remove(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Order deleted successfully"}))
}

// ApproveOrder transitions a pending order to approved
// @Summary      Approve order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response "Already processed by another manager"
// @Router       /api/orders/{id}/approve [post]
func (h *OrderHandler) ApproveOrder(c *gin.Context) {
	order, err := h.orderService.Approve(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// RejectOrder transitions a pending order to rejected
// @Summary      Reject order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response "Already processed by another manager"
// @Router       /api/orders/{id}/reject [post]
func (h *OrderHandler) RejectOrder(c *gin.Context) {
	order, err := h.orderService.Reject(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// MarkOrderPaid marks an approved order as paid
// @Summary      Mark order paid
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id}/pay [post]
func (h *OrderHandler) MarkOrderPaid(c *gin.Context) {
	order, err := h.orderService.MarkPaid(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// GetOrderActivity returns activity records describing the order, newest first
// @Summary      Get order activity
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.ActivityResponse}
// @Router       /api/orders/{id}/activity [get]
func (h *OrderHandler) GetOrderActivity(c *gin.Context) {
	logs, err := h.activityService.ListForOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(apperr.Status(err), response.FromError(err))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}
