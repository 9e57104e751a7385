package api

import (
	"net/http"

	"order-management/internal/service"

	"github.com/gin-gonic/gin"
)

// createClient handles client registration
func (h *Handler) createClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	client, err := h.clients.CreateClient(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, client)
}

// listClients returns the user's active clients
func (h *Handler) listClients(c *gin.Context) {
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 0)

	clients, err := h.clients.ListClients(c.Request.Context(), currentUserID(c), offset, limit)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, clients)
}

// getClient returns one client by ID
func (h *Handler) getClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	client, err := h.clients.GetClient(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// updateClient applies a partial update to a client
func (h *Handler) updateClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	client, err := h.clients.UpdateClient(c.Request.Context(), currentUserID(c), id, &req)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// deactivateClient soft-deletes a client
func (h *Handler) deactivateClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	client, err := h.clients.DeactivateClient(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// deleteClient removes a client permanently
func (h *Handler) deleteClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.clients.DeleteClient(c.Request.Context(), currentUserID(c), id); err != nil {
		serviceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
