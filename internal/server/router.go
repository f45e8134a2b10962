package server

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/auth"
	"github.com/abduss/bucketgate/internal/bucket"
	"github.com/abduss/bucketgate/internal/config"
	"github.com/abduss/bucketgate/internal/file"
	"github.com/abduss/bucketgate/internal/logger"
	"github.com/abduss/bucketgate/internal/metrics"
	"github.com/abduss/bucketgate/internal/presigned"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config           config.Config
	Logger           *zap.Logger
	DB               Pinger
	ObjectStore      Pinger
	AuthService      *auth.Service
	BucketService    *bucket.Service
	FileService      *file.Service
	PresignedService *presigned.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(deps.Logger))
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(deps.Config.CORS)))

	registerHealthRoutes(router, deps)
	if path := deps.Config.Metrics.PrometheusPath; path != "" {
		metrics.Register(router, path)
	}

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.BucketService != nil {
			bucket.RegisterRoutes(protected, deps.BucketService)
		}
		if deps.FileService != nil && deps.BucketService != nil {
			file.RegisterRoutes(protected, deps.FileService, deps.BucketService)
		}
	}

	if deps.PresignedService != nil {
		presigned.NewHandler(deps.PresignedService).RegisterRoutes(api.Group("/public"))
	}

	return router
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	c.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Authorization", "Content-Type", presigned.BucketKeyHeader, logger.CorrelationIDHeader}
	c.ExposeHeaders = []string{logger.CorrelationIDHeader, "Content-Disposition"}
	c.MaxAge = 12 * time.Hour
	return c
}
