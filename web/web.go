// Package web wires the usage API: gin routing, middleware, the frontend fallback and
// background jobs.
package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mhsanaei/3x-ui-usage/config"
	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"
	"github.com/mhsanaei/3x-ui-usage/web/controller"
	"github.com/mhsanaei/3x-ui-usage/web/job"
	"github.com/mhsanaei/3x-ui-usage/web/middleware"
	"github.com/mhsanaei/3x-ui-usage/web/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Server is the usage API HTTP server.
type Server struct {
	cfg *config.Config
	db  *gorm.DB

	httpServer *http.Server
	listener   net.Listener

	api   *controller.APIController
	index *controller.IndexController

	trafficService   *service.TrafficService
	speedTestService *service.SpeedTestService

	cron    *cron.Cron
	dbCheck *job.CheckDatabaseJob

	// ctx is the base context of every request; Stop cancels it so running
	// lookups and speed tests end with the server.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server reading traffic from db.
func NewServer(cfg *config.Config, db *gorm.DB) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:              cfg,
		db:               db,
		trafficService:   service.NewTrafficService(db, time.Local),
		speedTestService: service.NewSpeedTestService(service.ExecRunner{}, cfg.SpeedTestTimeout, cfg.SpeedTestFallback),
		dbCheck:          job.NewCheckDatabaseJob(db),
		ctx:              ctx,
		cancel:           cancel,
	}
}

// initRouter builds the gin engine. API routes are registered before the frontend
// fallback so they always win.
func (s *Server) initRouter() (*gin.Engine, error) {
	if s.cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	limit, err := config.ParseRateLimit(s.cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	// Only listed proxies may set X-Forwarded-For; otherwise ClientIP is the socket peer.
	if err := engine.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(middleware.RecoveryMiddleware(), middleware.AccessLogMiddleware())
	engine.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	rateLimit := middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig(limit))
	s.api = controller.NewAPIController(&engine.RouterGroup, s.trafficService, s.speedTestService, s.cfg.TelegramAdminURL, rateLimit)
	s.index = controller.NewIndexController(engine, s.cfg.FrontendDir)
	if s.cfg.Debug {
		s.api.EnableDiagnostics(s.dbCheck)
	}

	return engine, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	if s.cfg.DBCheckCron == "" {
		return
	}
	if _, err := s.cron.AddJob(s.cfg.DBCheckCron, s.dbCheck); err != nil {
		logger.Warningf("Add CheckDatabaseJob error[%v], Runtime[%s] invalid", err, s.cfg.DBCheckCron)
	}
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	s.dbCheck.Run()

	s.cron = cron.New(cron.WithLocation(time.Local))
	s.cron.Start()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()

	s.startTask()
	return nil
}

// Stop gracefully shuts down the HTTP server and the cron scheduler.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var err1, err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
		if errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
