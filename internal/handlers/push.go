package handlers

import (
	"net/http"

	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

type subscribeRequest struct {
	Subscription push.SubscriptionInput `json:"subscription"`
}

// Subscribe registers the browser's push subscription, replacing any
// earlier one
// POST /api/v1/push/subscribe
func (h *Handlers) Subscribe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}

	sub, err := h.registry.Subscribe(c.Request.Context(), userID, req.Subscription)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"subscribed": true,
		"endpoint":   sub.Endpoint,
	})
}

// Unsubscribe drops the caller's subscription
// DELETE /api/v1/push/subscribe
func (h *Handlers) Unsubscribe(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.registry.Unsubscribe(c.Request.Context(), userID); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetVAPIDPublicKey returns the application server key browsers need to
// subscribe
// GET /api/v1/push/vapid-public-key
func (h *Handlers) GetVAPIDPublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}
