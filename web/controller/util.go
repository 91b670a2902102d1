package controller

import (
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/gin-gonic/gin"
)

// jsonError writes the two-field error body with the given status.
func jsonError(c *gin.Context, statusCode int, msg string, detail string) {
	c.JSON(statusCode, entity.ErrorMsg{
		Error:  msg,
		Detail: detail,
	})
}
