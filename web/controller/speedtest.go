package controller

import (
	"errors"
	"net/http"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"

	"github.com/gin-gonic/gin"
)

// SpeedTestController exposes the server speed test.
type SpeedTestController struct {
	speedTest SpeedTester
}

func NewSpeedTestController(g *gin.RouterGroup, speedTest SpeedTester) *SpeedTestController {
	a := &SpeedTestController{speedTest: speedTest}
	a.initRouter(g)
	return a
}

func (a *SpeedTestController) initRouter(g *gin.RouterGroup) {
	g.GET("/speed-test", a.run)
}

func (a *SpeedTestController) run(c *gin.Context) {
	result, err := a.speedTest.Run(c.Request.Context())
	switch {
	case errors.Is(err, common.ErrSpeedTestTimeout):
		jsonError(c, http.StatusGatewayTimeout, "Speed test timed out", err.Error())
	case err != nil:
		logger.Warning("speed test aborted:", err)
		jsonError(c, http.StatusInternalServerError, "Server error", err.Error())
	default:
		c.JSON(http.StatusOK, result)
	}
}
