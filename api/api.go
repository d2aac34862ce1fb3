package api

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	timeout "github.com/vearne/gin-timeout"

	notifier "github.com/branchpulse/notifier"
	"github.com/branchpulse/notifier/authmanager"
	"github.com/branchpulse/notifier/config"
	"github.com/branchpulse/notifier/middleware"
	"github.com/branchpulse/notifier/server"
)

type Api interface {
	Run() error
}

type api struct {
	config              *config.Configuration
	engine              *gin.Engine
	registry            notifier.ConnectionRegistry
	eventStore          notifier.EventStore
	dispatcher          notifier.Dispatcher
	notificationService notifier.NotificationService
}

func (api *api) Run() error {
	if api.config.EnableTLS {
		return api.engine.RunTLS(fmt.Sprintf(":%d", api.config.APIPort), api.config.TLSCertPath, api.config.TLSKeyPath)
	}
	return api.engine.Run(fmt.Sprintf(":%d", api.config.APIPort))
}

func NewAPI(config *config.Configuration, authManager authmanager.AuthManager,
	registry notifier.ConnectionRegistry, eventStore notifier.EventStore,
	dispatcher notifier.Dispatcher, notificationService notifier.NotificationService,
	streamServer *server.EventStreamServer, longPollBridge *notifier.LongPollBridge) Api {

	if config.LogLevel <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	api := api{
		config:              config,
		engine:              engine,
		registry:            registry,
		eventStore:          eventStore,
		dispatcher:          dispatcher,
		notificationService: notificationService,
	}

	corsMiddleWare := middleware.CreateCorsMiddleware(config)
	engine.Use(corsMiddleWare)

	root := engine.Group("")
	root.GET("/health", api.GetHealth)

	v1Group := root.Group("v1")

	if api.config.Authorization {
		authMiddleWare := middleware.CheckAuth(authManager, config)
		v1Group.Use(authMiddleWare)
	}

	// Streaming routes hold their request open, they must stay out of
	// the timeout middleware.
	v1Group.GET("/events/stream", streamServer.ServeHTTP())
	if longPollBridge != nil {
		v1Group.GET("/events/subscribe", gin.WrapF(longPollBridge.SubscriptionHandler()))
	}

	timeoutMiddleware := timeout.Timeout(
		timeout.WithTimeout(10*time.Second),
		timeout.WithErrorHttpCode(http.StatusServiceUnavailable),
	)

	eventsGroup := v1Group.Group("/events", timeoutMiddleware)
	{
		eventsGroup.GET("", api.GetEvents)
		eventsGroup.POST("", middleware.RoleProtection([]notifier.UserRole{notifier.RoleAdmin, notifier.RoleManager}, false, api.config.Authorization), api.PublishEvent)
	}

	notificationsGroup := v1Group.Group("/notifications", timeoutMiddleware)
	{
		notificationsGroup.GET("", api.GetNotifications)
		notificationsGroup.GET("/unread", api.GetUnreadNotifications)
		notificationsGroup.PUT("/:notificationId/read", api.MarkNotificationRead)
		notificationsGroup.PUT("/read-all", api.MarkAllNotificationsRead)
	}

	healthGroup := v1Group.Group("/health", timeoutMiddleware)
	{
		healthGroup.POST("/actions", middleware.RoleProtection([]notifier.UserRole{notifier.RoleAdmin}, false, api.config.Authorization), api.PostHealthAction)
	}

	// Development-option enables debugger, this can have side-effects
	if api.config.Development {
		debug := root.Group("/debug/pprof")
		{
			debug.GET("/", gin.WrapF(pprof.Index))
			debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			debug.GET("/profile", gin.WrapF(pprof.Profile))
			debug.GET("/symbol", gin.WrapF(pprof.Symbol))
			debug.GET("/trace", gin.WrapF(pprof.Trace))
			debug.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			debug.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			debug.GET("/heap", gin.WrapH(pprof.Handler("heap")))
			debug.POST("/symbol", gin.WrapF(pprof.Symbol))
		}
	}

	return &api
}

// Engine exposes the configured router for tests.
func (api *api) Engine() *gin.Engine {
	return api.engine
}
