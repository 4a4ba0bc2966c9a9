package handlers

import (
	"net/http"

	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

// FollowUser sends a follow request to :id
// POST /api/v1/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	n, err := h.requests.Request(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": n})
}

// UnfollowUser removes the edge and any pending request to :id
// DELETE /api/v1/users/:id/follow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.requests.Unfollow(c.Request.Context(), userID, c.Param("id")); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetFollowRequests lists requests waiting for the caller's decision
// GET /api/v1/follow-requests
func (h *Handlers) GetFollowRequests(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	requests, err := h.notifications.PendingRequests(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// CancelFollowRequest withdraws a request the caller sent
// DELETE /api/v1/follow-requests/:id
func (h *Handlers) CancelFollowRequest(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	if err := h.requests.Cancel(c.Request.Context(), c.Param("id"), userID); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type permissionsRequest struct {
	LikePermission    models.Tier `json:"like_permission"`
	CommentPermission models.Tier `json:"comment_permission"`
}

// UpdatePermissions sets who may like and comment on the caller's content
// PUT /api/v1/users/me/permissions
func (h *Handlers) UpdatePermissions(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req permissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	if err := h.users.UpdatePermissions(c.Request.Context(), userID, req.LikePermission, req.CommentPermission); err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
