package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/propscrape/api/handler"
	"github.com/use-agent/propscrape/api/middleware"
	"github.com/use-agent/propscrape/cache"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/webhook"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health sits outside auth so monitoring probes always work.
func NewRouter(run handler.Runner, cfg *config.Config, cc *cache.Cache, sender *webhook.Sender, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(run, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/listings", handler.Listings(run, cc, cfg.Webhook, sender))

	return r
}
