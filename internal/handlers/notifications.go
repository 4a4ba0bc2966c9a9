package handlers

import (
	"net/http"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/events"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

// GetNotifications lists the caller's notifications, newest first
// GET /api/v1/notifications?limit=&offset=
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	limit, offset := util.Pagination(c, notifications.DefaultPageSize)

	list, err := h.notifications.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"count":         len(list),
		"limit":         limit,
		"offset":        offset,
	})
}

// GetUnreadCount returns the badge count
// GET /api/v1/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// AcceptNotification accepts a pending follow request
// POST /api/v1/notifications/:id/accept
func (h *Handlers) AcceptNotification(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifications.Accept(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// RejectNotification rejects a pending follow request
// POST /api/v1/notifications/:id/reject
func (h *Handlers) RejectNotification(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifications.Reject(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkNotificationRead acknowledges a notification
// POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// TriggerEvent dispatches a raw event. sender_id defaults to the caller and
// may not name anyone else.
// POST /api/v1/notifications/trigger
func (h *Handlers) TriggerEvent(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var ev events.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if ev.ActorID == "" {
		ev.ActorID = userID
	}
	if ev.ActorID != userID {
		util.RespondWithAPIError(c, errors.PermissionDenied("sender_id must be the authenticated user"))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), ev)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"result": result})
}
