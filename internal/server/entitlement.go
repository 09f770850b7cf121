package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type consumeResponse struct {
	Accepted bool `json:"accepted"`
}

type usageResponse struct {
	UserID      string            `json:"user_id"`
	FeatureID   string            `json:"feature_id"`
	Count       int64             `json:"count"`
	WindowStart time.Time         `json:"window_start"`
	ResetPeriod string            `json:"reset_period"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EvaluateEntitlement answers whether the caller may use the feature
// right now, with remaining quota for display. Read-only.
func (s *Server) EvaluateEntitlement(c *gin.Context) {
	featureID := c.Param("feature")
	c.Set("feature_id", featureID)

	decision, err := s.entitlementSvc.Evaluate(c.Request.Context(), userIDFrom(c), featureID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ConsumeEntitlement meters one use. 200 with accepted=false means the
// quota is exhausted and the client should show an upgrade prompt.
func (s *Server) ConsumeEntitlement(c *gin.Context) {
	featureID := c.Param("feature")
	c.Set("feature_id", featureID)

	accepted, err := s.entitlementSvc.Consume(c.Request.Context(), userIDFrom(c), featureID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, consumeResponse{Accepted: accepted})
}

// GetUsage returns the durable counter for support diagnostics.
func (s *Server) GetUsage(c *gin.Context) {
	featureID := c.Param("feature")
	c.Set("feature_id", featureID)

	record, err := s.entitlementSvc.GetUsage(c.Request.Context(), userIDFrom(c), featureID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if record == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		UserID:      record.UserID,
		FeatureID:   record.FeatureID,
		Count:       record.Count,
		WindowStart: record.WindowStart,
		ResetPeriod: string(record.ResetPeriod),
		Metadata:    record.Metadata,
		UpdatedAt:   record.UpdatedAt,
	})
}

// ConsumeRateLimit throttles consume requests per user ahead of the
// durable counter.
func (s *Server) ConsumeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := s.consumeLimiter.Allow(c.Request.Context(), userIDFrom(c))
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"type":    "rate_limited",
					"message": "too many requests",
				},
			})
			return
		}
		c.Next()
	}
}
