// Package trace tags each request with an id and logs its completion.
package trace

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spendwise/internal/log"
	"spendwise/internal/metrics"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID carries the id in both directions.
	HeaderRequestID = "X-Request-ID"
)

// RequestID reuses a well-formed incoming X-Request-ID or mints one, stores it
// in the request context along with a logger carrying it, and echoes it back.
func RequestID(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), RequestIDKey, id)
		ctx = log.WithContext(ctx, logger.With(log.FieldRequestID, id))
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Logger logs every finished request at a level chosen by its status and
// counts it by route.
func Logger(logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	sl := log.NewStructuredLogger(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
		sl.LogHTTPEnd(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery,
			status, time.Since(start), c.ClientIP())
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
