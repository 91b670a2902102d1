package middleware

import (
	"fmt"
	"net/http"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/gin-gonic/gin"
)

// RecoveryMiddleware turns a panic in a handler into a 500 "Server error" body.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Errorf("panic while handling %s: %v", c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, entity.ErrorMsg{
			Error:  "Server error",
			Detail: fmt.Sprint(recovered),
		})
	})
}
