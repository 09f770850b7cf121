package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminKeyRequired gates diagnostic endpoints behind the configured admin
// key. With no key configured the endpoints are disabled outright.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := s.cfg.AdminAPIKey
		if configured == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(configured)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
