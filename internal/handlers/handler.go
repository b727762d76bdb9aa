package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"surf_clock/internal/logger"
	"surf_clock/internal/service"
)

// Handler serves the operator API on top of the clock services.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes returns the router. Only /api/v1 requires a bearer token; the
// /ws state stream is read-only and open like /health.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no route " + c.Request.Method + " " + c.Request.URL.Path})
	})

	router.GET("/health", h.health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/ws", h.wsConnect)

	auth := router.Group("/auth")
	auth.POST("/sign-up", h.signUp)
	auth.POST("/sign-in", h.signIn)

	api := router.Group("/api/v1", h.userIdMiddleware)

	clock := api.Group("/clock")
	clock.GET("/state", h.getState)
	clock.POST("/refresh", h.refreshClock)
	clock.POST("/pause", h.pauseClock)
	clock.POST("/resume", h.resumeClock)

	logs := api.Group("/logs")
	logs.GET("/", h.getLogs)
	logs.GET("/types", h.getLogTypes)

	return router
}
