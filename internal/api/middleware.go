// internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "loan-sanction/internal/common/errors"
	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/metrics"
	"loan-sanction/internal/common/ratelimit"
	"loan-sanction/internal/inference"
)

// RequestID reuses the caller's X-Request-ID or generates one, and threads it into
// the request context for the prediction logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(inference.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger logs one line per request. Bodies are never logged.
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := map[string]interface{}{
			"requestId": c.GetString(requestIDKey),
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latencyMs": time.Since(start).Milliseconds(),
			"clientIp":  c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Request completed", fields)
		case status >= http.StatusBadRequest:
			log.Warn("Request completed", fields)
		default:
			log.Info("Request completed", fields)
		}
	}
}

func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered", map[string]interface{}{
					"requestId": c.GetString(requestIDKey),
					"panic":     fmt.Sprint(r),
				})
				respondError(c, apperrors.NewInternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}

// CORS allows any origin so the browser form can call the API directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Model-Version, X-Encoding-Version")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RateLimit rejects clients over their window with 429. Limiter errors let the
// request through.
func RateLimit(limiter ratelimit.Limiter, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		allowed, err := limiter.Allow(c.Request.Context(), client)
		switch {
		case err != nil:
			metrics.RateLimitDecisions.WithLabelValues(limiter.Backend(), "error").Inc()
			log.Warn("Rate limiter unavailable, allowing request", map[string]interface{}{
				"requestId": c.GetString(requestIDKey),
				"backend":   limiter.Backend(),
				"error":     err.Error(),
			})
		case !allowed:
			metrics.RateLimitDecisions.WithLabelValues(limiter.Backend(), "limited").Inc()
			respondError(c, apperrors.NewRateLimitedError(client))
			return
		default:
			metrics.RateLimitDecisions.WithLabelValues(limiter.Backend(), "allowed").Inc()
		}
		c.Next()
	}
}

// BodyLimit caps the request body; reads past the limit fail with *http.MaxBytesError.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respondError(c, apperrors.NewPayloadTooLargeError(maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// Timeout bounds the request context. Handlers observe it through ctx.Err().
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
