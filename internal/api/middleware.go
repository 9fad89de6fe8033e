package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/auth"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// authMiddleware accepts "Bearer <token>", resolves the caller's profile
// and attaches the identity to the request context
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			return
		}

		id, err := h.Verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			details := "Invalid or expired token"
			var perr *auth.ProviderError
			if errors.As(err, &perr) {
				details = perr.Message
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "details": details})
			return
		}

		id, err = h.Profiles.Resolve(c.Request.Context(), id)
		if err != nil {
			respondError(c, "Unauthorized", err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// requirePermission rejects callers whose role lacks perm
func requirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok || !id.Can(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"details": "missing permission: " + perm,
			})
			return
		}
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
