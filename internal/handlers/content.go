package handlers

import (
	"net/http"

	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

type createBlogRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	CoverImage string `json:"cover_image"`
}

// CreateBlog publishes a blog and notifies the author's followers
// POST /api/v1/blogs
func (h *Handlers) CreateBlog(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req createBlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	blog, err := h.content.PublishBlog(c.Request.Context(), userID, req.Title, req.Body, req.CoverImage)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blog": blog})
}

// ToggleBlogLike likes or unlikes a blog
// POST /api/v1/blogs/:id/like
func (h *Handlers) ToggleBlogLike(c *gin.Context) {
	res, err := h.content.ToggleBlogLike(c.Request.Context(), util.OptionalUserID(c), c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment comments on a blog
// POST /api/v1/blogs/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid request body")
		return
	}
	comment, err := h.content.CreateComment(c.Request.Context(), util.OptionalUserID(c), c.Param("id"), req.Content)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// ToggleCommentLike likes or unlikes a comment
// POST /api/v1/comments/:id/like
func (h *Handlers) ToggleCommentLike(c *gin.Context) {
	res, err := h.content.ToggleCommentLike(c.Request.Context(), util.OptionalUserID(c), c.Param("id"))
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
