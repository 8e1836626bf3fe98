package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerAdminID   = "X-Admin-ID"

	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxAdminID   = "admin_id"
)

// UserIdentity reads the caller identity the edge proxy injected. Requests
// without it never reach a handler.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUserEmail, strings.TrimSpace(c.GetHeader(headerUserEmail)))
		c.Next()
	}
}

func AdminIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := strings.TrimSpace(c.GetHeader(headerAdminID))
		if adminID == "" {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Set(ctxAdminID, adminID)
		c.Next()
	}
}

func userID(c *gin.Context) string    { return c.GetString(ctxUserID) }
func userEmail(c *gin.Context) string { return c.GetString(ctxUserEmail) }
func adminID(c *gin.Context) string   { return c.GetString(ctxAdminID) }

func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
			log.Warn("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
