// internal/api/router.go
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-sanction/internal/common/logger"
	"loan-sanction/internal/common/ratelimit"
)

// Options wires the router. Limiter, Redis and Zeebe are optional.
type Options struct {
	Service         PredictService
	Model           ModelStatus
	EncodingVersion string
	Limiter         ratelimit.Limiter
	Redis           Pinger
	Zeebe           Pinger
	Logger          logger.Logger
	MaxBodyBytes    int64
	RequestTimeout  time.Duration
	// TrustedProxies may set the client IP via X-Forwarded-For. Nil trusts none.
	TrustedProxies []string
}

// DefaultMaxBodyBytes applies when Options.MaxBodyBytes is unset.
const DefaultMaxBodyBytes = 64 << 10

// Setup creates and configures the Gin router
func Setup(opts Options) *gin.Engine {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Logger.Warn("Invalid trusted proxies, using the TCP peer as client IP", map[string]interface{}{
			"error": err.Error(),
		})
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(RequestID())
	router.Use(Logger(opts.Logger))
	router.Use(Recovery(opts.Logger))
	router.Use(CORS())

	components := make(map[string]Pinger)
	if opts.Redis != nil {
		components["redis"] = opts.Redis
	}
	if opts.Zeebe != nil {
		components["zeebe"] = opts.Zeebe
	}
	health := NewHealthHandler(opts.Model, opts.EncodingVersion, components)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	predict := router.Group("/predict")
	if opts.Limiter != nil {
		predict.Use(RateLimit(opts.Limiter, opts.Logger))
	}
	predict.Use(BodyLimit(opts.MaxBodyBytes))
	if opts.RequestTimeout > 0 {
		predict.Use(Timeout(opts.RequestTimeout))
	}

	h := NewPredictHandler(opts.Service, opts.MaxBodyBytes)
	predict.POST("", h.Predict)

	return router
}
