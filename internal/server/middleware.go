package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	obscontext "github.com/gradpath/gradpath/internal/observability/context"
)

const (
	headerUserID     = "X-User-ID"
	contextUserIDKey = "user_id"
)

// UserRequired extracts the caller's user id from the gateway-injected
// header. The upstream gateway authenticates the session; this service
// only needs the stable identifier.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}
