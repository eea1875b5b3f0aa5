package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/termforge/glossary-backend/internal/handlers"
)

type RouterConfig struct {
	GenerationHandler *handlers.GenerationHandler
	BatchHandler      *handlers.BatchHandler
	AllowAllOrigins   bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	corsCfg := cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}
	if cfg.AllowAllOrigins {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Single-item trigger
		api.POST("/generate/:termId/:columnId", cfg.GenerationHandler.GenerateSection)

		// Batch triggers
		api.POST("/batch/columns/:columnId", cfg.BatchHandler.StartColumnBatch)
		api.POST("/batch/terms/:termId", cfg.BatchHandler.StartTermBatch)

		// Job introspection
		api.GET("/jobs/:jobId", cfg.BatchHandler.GetJob)
		api.GET("/jobs/:jobId/costs", cfg.BatchHandler.GetJobCosts)
		api.POST("/jobs/:jobId/cancel", cfg.BatchHandler.CancelJob)
	}

	return router
}
