package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"facility-form-backend/config"
	"facility-form-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, nil)
	agentCaching := mw.Cache(cacheStore, ttl, mw.QueryRefresh("refresh"))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/authorizable-properties", caching, h.GetAuthorizableProperties)
		api.GET("/agents", agentCaching, h.GetAgents)

		forms := api.Group("/forms")
		forms.POST("", h.OpenForm)
		forms.GET("/:id", h.GetForm)
		forms.DELETE("/:id", h.CloseForm)
		forms.GET("/:id/validation", h.ValidateForm)
		forms.PUT("/:id/fields/:field", h.SetField)
		forms.PUT("/:id/reporters/:index/key", h.ResolveReporter)
		forms.POST("/:id/reporters/:index/blur", h.BlurReporter)
		forms.PUT("/:id/reporters/:index/properties", h.SetReporterProperties)
		forms.POST("/:id/submit", h.SubmitForm)

		api.GET("/facilities/:id", h.GetFacility)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
