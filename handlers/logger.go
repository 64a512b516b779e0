package handlers

import (
	"leadmarket/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves a Zap logger from the Gin context, falling back to the
// shared global logger.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get("logger"); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return utils.GetLogger()
}

// statusCoder is implemented by service errors that know their HTTP status.
type statusCoder interface {
	StatusCode() int
	Error() string
}

// respondError maps service errors to HTTP responses. Coded errors keep
// their status and message; anything else becomes an opaque 500.
func respondError(c *gin.Context, err error, fallback string) {
	if coded, ok := err.(statusCoder); ok {
		c.JSON(coded.StatusCode(), gin.H{"error": coded.Error()})
		return
	}
	getLogger(c).Error(fallback, zap.Error(err))
	c.JSON(500, gin.H{"error": fallback})
}
