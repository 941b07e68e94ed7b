package daemon

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/visarisk/agent/internal/common"
)

const (
	correlationIDKey    = "correlation_id"
	correlationIDHeader = "X-Correlation-ID"
)

// CorrelationMiddleware tags every request with a correlation ID, reusing
// the caller's X-Correlation-ID when it is a valid UUID. The ID is echoed
// in the response and carried on the request context so backend calls made
// on behalf of the request send it too.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationIDHeader)

		if _, err := uuid.Parse(correlationID); err != nil {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header(correlationIDHeader, correlationID)
		c.Request = c.Request.WithContext(
			common.WithCorrelationID(c.Request.Context(), correlationID),
		)

		c.Next()
	}
}

func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

// LogWithCorrelation returns a logrus entry carrying the request correlation ID.
func LogWithCorrelation(c *gin.Context) *logrus.Entry {
	return logrus.WithField("correlation_id", GetCorrelationID(c))
}
