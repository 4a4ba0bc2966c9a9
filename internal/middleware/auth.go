package middleware

import (
	"github.com/blogify/notifier/internal/auth"
	"github.com/blogify/notifier/internal/util"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's id under util.UserIDKey.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authService.ParseToken(auth.TokenFromRequest(c.Request))
		if err != nil {
			util.RespondError(c, err)
			return
		}
		c.Set(util.UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is
// present and lets anonymous requests through otherwise.
func OptionalAuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := auth.TokenFromRequest(c.Request); token != "" {
			if userID, err := authService.ParseToken(token); err == nil {
				c.Set(util.UserIDKey, userID)
			}
		}
		c.Next()
	}
}
