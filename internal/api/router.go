// Package api wires the admin HTTP surface.
package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/activity-feed/config"
	_ "github.com/d60-Lab/activity-feed/docs"
	"github.com/d60-Lab/activity-feed/internal/api/handler"
	"github.com/d60-Lab/activity-feed/internal/api/middleware"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
	"github.com/d60-Lab/activity-feed/pkg/response"
)

// SetupRouter 注册所有路由
func SetupRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	log := logger.Named("api")
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logger(log))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1", middleware.JWTAuth(cfg.JWT.Secret))
	{
		events := v1.Group("/events")
		events.POST("/created", h.PublishCreated)
		events.POST("/updated", h.PublishUpdated)
		events.POST("/deleted", h.PublishDeleted)

		relations := v1.Group("/relations")
		relations.POST("/follow", h.Follow)
		relations.POST("/unfollow", h.Unfollow)
		relations.GET("/:user_id/followers", h.ListFollowers)

		v1.GET("/actions/:action_id/feeds", h.GetActionFeeds)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Response{Code: http.StatusNotFound, Message: "route not found"})
	})
	return r
}
