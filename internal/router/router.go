// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/internal/config"
	"github.com/YuminosukeSato/mlapi/internal/handler"
	"github.com/YuminosukeSato/mlapi/internal/middleware"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

// SetupRouter registers the middleware chain and every route. limiter may
// be nil to disable rate limiting.
func SetupRouter(h *handler.Handlers, metrics *telemetry.Metrics, cors config.CORSConfig, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	logger := log.GetLoggerWithName("http")

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.CORS(cors.AllowedOrigins, cors.AllowCredentials))
	if limiter != nil {
		r.Use(limiter.Handler())
	}

	r.GET("/", h.System.Root)
	r.GET("/health", h.System.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		analysis := v1.Group("/analysis")
		{
			analysis.POST("/upload", h.Analysis.Upload)
			analysis.GET("/datasets", h.Analysis.ListDatasets)
			analysis.GET("/:dataset_id/summary", h.Analysis.Summary)
			analysis.GET("/:dataset_id/histogram/:column", h.Analysis.Histogram)
			analysis.GET("/:dataset_id/histogram/:column/plot", h.Analysis.HistogramPlot)
		}

		ml := v1.Group("/ml")
		{
			ml.POST("/:dataset_id/train", h.ML.Train)
			ml.POST("/predict/:model_id", h.ML.Predict)
			ml.GET("/models", h.ML.ListModels)
			ml.GET("/models/:model_id", h.ML.GetModel)
		}
	}

	return r
}
