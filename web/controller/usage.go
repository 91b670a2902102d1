package controller

import (
	"errors"
	"net/http"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/gin-gonic/gin"
)

// UsageController serves the per-user traffic lookup.
type UsageController struct {
	traffic TrafficLookup
}

// NewUsageController registers the usage route on g.
func NewUsageController(g *gin.RouterGroup, traffic TrafficLookup) *UsageController {
	a := &UsageController{traffic: traffic}
	a.initRouter(g)
	return a
}

func (a *UsageController) initRouter(g *gin.RouterGroup) {
	g.GET("/usage", a.getUsage)
}

// getUsage looks a user up by the uuid query parameter, or by username when uuid is absent.
func (a *UsageController) getUsage(c *gin.Context) {
	uuid := c.Query("uuid")
	username := c.Query("username")

	if uuid == "" && username == "" {
		jsonError(c, http.StatusBadRequest, "Missing parameter", "Either uuid or username must be provided")
		return
	}

	var (
		traffic *entity.UserTraffic
		err     error
	)
	if uuid != "" {
		logger.Infof("Looking up user by UUID: %s (from %s)", uuid, c.ClientIP())
		traffic, err = a.traffic.GetByUUID(c.Request.Context(), uuid)
	} else {
		logger.Infof("Looking up user by username: %s (from %s)", username, c.ClientIP())
		traffic, err = a.traffic.GetByUsername(c.Request.Context(), username)
	}

	switch {
	case errors.Is(err, common.ErrEmptyIdentifier):
		jsonError(c, http.StatusBadRequest, "Missing parameter", "Either uuid or username must be provided")
	case err != nil:
		logger.Error("Error processing request: ", err)
		jsonError(c, http.StatusInternalServerError, "Server error", err.Error())
	case traffic == nil:
		jsonError(c, http.StatusNotFound, "User not found", "No user found with the provided identifier")
	default:
		c.JSON(http.StatusOK, traffic)
	}
}
