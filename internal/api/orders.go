package api

import (
	"net/http"
	"strconv"
	"time"

	"order-management/internal/models"
	"order-management/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// listOrders returns a filtered page of the user's orders
func (h *Handler) listOrders(c *gin.Context) {
	filter := models.OrderFilter{
		Status: c.Query("status"),
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", 0),
	}

	if v := c.Query("client_id"); v != "" {
		clientID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client_id"})
			return
		}
		filter.ClientID = &clientID
	}
	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected RFC 3339"})
			return
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected RFC 3339"})
			return
		}
		filter.EndDate = &t
	}

	orders, total, err := h.orders.ListOrders(c.Request.Context(), currentUserID(c), filter)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// getOrder returns one order with its items
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// getOrderTimeline returns the recorded lifecycle of an order
func (h *Handler) getOrderTimeline(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.orders.GetOrderTimeline(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"timeline": entries})
}

// updateOrderStatus moves an order along its lifecycle
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), currentUserID(c), id, &req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// deleteOrder removes a pending order
func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), currentUserID(c), id); err != nil {
		serviceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
