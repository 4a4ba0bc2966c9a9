// Package handlers exposes the notification engine over HTTP.
package handlers

import (
	"context"

	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/events"
	"github.com/blogify/notifier/internal/followrequests"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/realtime"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/gin-gonic/gin"
)

// Dispatcher is the fan-out entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) (*events.Result, error)
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	notifications  *notifications.Service
	requests       *followrequests.Machine
	dispatcher     Dispatcher
	content        *content.Service
	registry       *push.Registry
	users          *relationships.Store
	vapidPublicKey string
	ws             *realtime.Handler
}

// Deps lists what the handlers need; every field is required except WS.
type Deps struct {
	Notifications  *notifications.Service
	Requests       *followrequests.Machine
	Dispatcher     Dispatcher
	Content        *content.Service
	Registry       *push.Registry
	Users          *relationships.Store
	VAPIDPublicKey string
	WS             *realtime.Handler
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		notifications:  d.Notifications,
		requests:       d.Requests,
		dispatcher:     d.Dispatcher,
		content:        d.Content,
		registry:       d.Registry,
		users:          d.Users,
		vapidPublicKey: d.VAPIDPublicKey,
		ws:             d.WS,
	}
}

// Middleware bundles the per-route middleware the router needs.
type Middleware struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	TriggerLimit gin.HandlerFunc
}

// RegisterRoutes mounts every endpoint under api (normally /api/v1).
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup, mw Middleware) {
	optional := passthrough(mw.OptionalAuth)
	limit := passthrough(mw.TriggerLimit)

	n := api.Group("/notifications", mw.Auth)
	{
		n.GET("", h.GetNotifications)
		n.GET("/unread-count", h.GetUnreadCount)
		n.POST("/trigger", limit, h.TriggerEvent)
		n.POST("/:id/accept", h.AcceptNotification)
		n.POST("/:id/reject", h.RejectNotification)
		n.POST("/:id/read", h.MarkNotificationRead)
	}

	p := api.Group("/push")
	{
		p.GET("/vapid-public-key", h.GetVAPIDPublicKey)
		p.POST("/subscribe", mw.Auth, h.Subscribe)
		p.DELETE("/subscribe", mw.Auth, h.Unsubscribe)
	}

	api.POST("/users/:id/follow", mw.Auth, h.FollowUser)
	api.DELETE("/users/:id/follow", mw.Auth, h.UnfollowUser)
	api.PUT("/users/me/permissions", mw.Auth, h.UpdatePermissions)
	api.GET("/follow-requests", mw.Auth, h.GetFollowRequests)
	api.DELETE("/follow-requests/:id", mw.Auth, h.CancelFollowRequest)

	api.POST("/blogs", mw.Auth, h.CreateBlog)
	api.POST("/blogs/:id/like", optional, h.ToggleBlogLike)
	api.POST("/blogs/:id/comments", optional, h.CreateComment)
	api.POST("/comments/:id/like", optional, h.ToggleCommentLike)

	if h.ws != nil {
		api.GET("/ws", h.ws.HandleWebSocket)
	}
}

func passthrough(mw gin.HandlerFunc) gin.HandlerFunc {
	if mw != nil {
		return mw
	}
	return func(c *gin.Context) { c.Next() }
}
