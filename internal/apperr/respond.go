package apperr

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/logger"
)

// Respond writes err as a JSON error body with the status mapped from its kind. Internal,
// storage and consistency failures are logged and their details are not exposed.
func Respond(c *gin.Context, err error) {
	kind := KindOf(err)
	status := HTTPStatus(kind)

	message := err.Error()
	if status >= 500 {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("kind", kind.String()),
			zap.Error(err),
		)
		switch kind {
		case KindStorage:
			message = "object store unavailable"
		case KindConsistency:
			message = "bucket statistics could not be updated"
		default:
			message = "internal error"
		}
	} else {
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			message = e.Message
		}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind.String()})
}
