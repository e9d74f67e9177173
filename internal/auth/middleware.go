package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/sio60/guildrunner/internal/rate"
	"github.com/sio60/guildrunner/pkg/idgen"
	"github.com/sio60/guildrunner/pkg/logger"
)

// CORSMiddleware applies the permissive cross-origin headers to every
// response and short-circuits preflight requests with 204.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags every request with a snowflake ID, exposed
// as X-Request-ID and available to handlers via the context.
func RequestIDMiddleware(gen idgen.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strconv.FormatInt(gen.GenerateID(), 10)
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// TraceLoggerMiddleware attaches the active trace and span IDs to the
// gin context so request logs correlate with exported spans.
func TraceLoggerMiddleware(log logger.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			traceID := span.SpanContext().TraceID().String()
			spanID := span.SpanContext().SpanID().String()
			c.Set("trace_id", traceID)
			c.Set("span_id", spanID)

			log.Debug("incoming request",
				logger.Field{Key: "trace_id", Value: traceID},
				logger.Field{Key: "span_id", Value: spanID},
				logger.Field{Key: "path", Value: c.Request.URL.Path})
		}
		c.Next()
	}
}

// RateLimitMiddleware applies a fixed-window limit keyed by client IP.
// Limiter backend failures fail open: login availability wins over
// strict limiting.
func RateLimitMiddleware(limiter *rate.Limiter, log logger.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable", logger.Field{Key: "err", Value: err})
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": ErrorCodeRateLimited})
			return
		}
		c.Next()
	}
}
