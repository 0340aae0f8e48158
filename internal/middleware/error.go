package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/pintoo555/SyncERP-sub001/pkg/errors"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
)

// ErrorHandlerMiddleware handles errors and panics
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				// Log panic stack trace
				stack := string(debug.Stack())
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Msg("Panic recovered")

				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "An unexpected error occurred",
					"kind":  errors.KindInternal,
				})
				c.Abort()
			}
		}()

		c.Next()

		// Handle errors attached to the context
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			if appErr, ok := err.(*errors.AppError); ok {
				c.JSON(appErr.Code, gin.H{
					"error": appErr.Message,
					"kind":  appErr.Kind,
				})
				return
			}

			logger.Error().Err(err).Msg("Unhandled request error")

			// Don't expose internal errors to the client
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal Server Error",
				"kind":  errors.KindInternal,
			})
		}
	}
}
