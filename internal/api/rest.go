// Package api provides the REST API and WebSocket feed for timr.
// It exposes the timer store over HTTP and streams timer events and logs to
// connected WebSocket clients.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/eventbus"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/metrics"
	"github.com/mescon/timr/internal/store"
	"github.com/mescon/timr/internal/timer"
)

type RESTServer struct {
	router     *gin.Engine
	httpServer *http.Server
	store      *store.Store
	eventBus   *eventbus.EventBus
	metrics    *metrics.MetricsService
	hub        *WebSocketHub
	limiter    *RateLimiter

	// applied to timers created through the API
	defaultFormat string
	timerOpts     []timer.Option
	startTime     time.Time
}

// ServerDeps contains all dependencies required for the REST server
type ServerDeps struct {
	Store    *store.Store
	EventBus *eventbus.EventBus
	Metrics  *metrics.MetricsService

	// TimerOptions are applied to every timer created through the API, after the
	// configured tick interval.
	TimerOptions []timer.Option
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	cfg := config.Get()

	// Set Gin to release mode for production (suppresses debug warnings)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Request ID middleware for correlation/tracing
	r.Use(func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	})

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      ErrMsgInternalError,
			"request_id": reqID,
		})
	}))

	r.Use(corsMiddleware(cfg.CORSOrigin))

	timerOpts := append([]timer.Option{timer.WithTickInterval(cfg.TickInterval)}, deps.TimerOptions...)

	s := &RESTServer{
		router:        r,
		store:         deps.Store,
		eventBus:      deps.EventBus,
		metrics:       deps.Metrics,
		hub:           NewWebSocketHub(deps.EventBus, cfg.CORSOrigin),
		limiter:       NewRateLimiterPerSecond(cfg.RateLimitRPS, cfg.RateLimitBurst),
		defaultFormat: cfg.DefaultFormat,
		timerOpts:     timerOpts,
		startTime:     time.Now(),
	}

	s.setupRoutes(cfg.BasePath)

	return s
}

// corsMiddleware sets CORS headers for the comma separated origins. "*" allows every
// origin; an empty value leaves the browser's same-origin policy in charge.
func corsMiddleware(corsOrigins string) gin.HandlerFunc {
	allowedOrigins := make(map[string]bool)
	if corsOrigins != "" {
		for _, origin := range strings.Split(corsOrigins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if corsOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowedOrigins[origin] {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *RESTServer) setupRoutes(basePath string) {
	var base *gin.RouterGroup
	if basePath == "/" {
		base = s.router.Group("")
	} else {
		base = s.router.Group(basePath)
	}

	// Prometheus scrapes /metrics at the root regardless of the base path
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := base.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/ws", s.hub.HandleConnection)

		timers := api.Group("/timers")
		timers.GET("", s.listTimers)
		timers.POST("", s.limiter.Middleware(), s.createTimer)
		timers.DELETE("", s.destroyAllTimers)

		// Specific routes MUST come before :id parameter routes
		timers.POST("/start-all", s.startAllTimers)
		timers.POST("/pause-all", s.pauseAllTimers)
		timers.POST("/stop-all", s.stopAllTimers)
		timers.GET("/status/:status", s.listTimersByStatus)

		timers.GET("/:id", s.getTimer)
		timers.DELETE("/:id", s.destroyTimer)
		timers.POST("/:id/start", s.startTimer)
		timers.POST("/:id/pause", s.pauseTimer)
		timers.POST("/:id/stop", s.stopTimer)
		timers.PUT("/:id/start-time", s.setTimerStartTime)
		timers.PATCH("/:id/options", s.changeTimerOptions)
	}
}

// Handler returns the router, mostly for tests.
func (s *RESTServer) Handler() http.Handler {
	return s.router
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and disconnects WebSocket clients
func (s *RESTServer) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	s.limiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
