package router

import (
	"github.com/cuongbtq/dungeon-forge/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by the health endpoint
const ServiceName = "dungeon-api-service"

// SetupRouter configures and returns the Gin router with all routes.
// Without allowedOrigins every origin may call the API.
func SetupRouter(deps *handler.Dependencies, allowedOrigins ...string) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(allowedOrigins))

	r.GET("/health", handler.NewHealthHandler(ServiceName, deps).Health)

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		dungeons := v1.Group("/dungeons")
		{
			dungeons.POST("", jobHandler.CreateDungeon)
			dungeons.GET("", jobHandler.ListDungeons)
			dungeons.GET("/:job_id", jobHandler.GetDungeon)
			dungeons.GET("/:job_id/map.png", jobHandler.GetMapImage)
			dungeons.GET("/:job_id/key.png", jobHandler.GetKeyImage)
			dungeons.DELETE("/:job_id", jobHandler.DeleteDungeon)
		}
	}

	return r
}
