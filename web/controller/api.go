package controller

import (
	"net/http"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/gin-gonic/gin"
)

const diagnosticLogCount = 20

// APIController owns the /api group: metadata routes plus the usage and speed-test controllers.
type APIController struct {
	telegramURL string
	database    DatabaseHealth

	usageController     *UsageController
	speedTestController *SpeedTestController
}

// NewAPIController registers every /api route on g. Middleware passed in runs before each route.
func NewAPIController(g *gin.RouterGroup, traffic TrafficLookup, speedTest SpeedTester, telegramURL string, middleware ...gin.HandlerFunc) *APIController {
	a := &APIController{telegramURL: telegramURL}
	a.initRouter(g, traffic, speedTest, middleware)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, traffic TrafficLookup, speedTest SpeedTester, middleware []gin.HandlerFunc) {
	api := g.Group("/api")
	api.Use(middleware...)

	api.GET("", a.root)
	api.GET("/", a.index)
	api.GET("/health", a.health)
	api.GET("/admin-contact", a.adminContact)

	a.usageController = NewUsageController(api, traffic)
	a.speedTestController = NewSpeedTestController(api, speedTest)
}

func (a *APIController) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "3x-ui Traffic Dashboard API"})
}

func (a *APIController) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API endpoints available at /api/usage and /api/admin-contact"})
}

// EnableDiagnostics adds the storage check result and recent warnings to /api/health.
// It is meant for debug mode only.
func (a *APIController) EnableDiagnostics(database DatabaseHealth) {
	a.database = database
}

func (a *APIController) health(c *gin.Context) {
	if a.database == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	state := "ok"
	if !a.database.Healthy() {
		state = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": state,
		"logs":     logger.GetLogs(diagnosticLogCount, "WARNING"),
	})
}

// adminContact returns the configured Telegram admin contact URL.
func (a *APIController) adminContact(c *gin.Context) {
	c.JSON(http.StatusOK, entity.AdminContact{TelegramURL: a.telegramURL})
}
