package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/coursepulse/coursepulse-backend/internal/handlers"
  "github.com/coursepulse/coursepulse-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler      *handlers.AuthHandler
  AuthMiddleware   *middleware.AuthMiddleware
  TelemetryHandler *handlers.TelemetryHandler
  DashboardHandler *handlers.DashboardHandler
  JobsHandler      *handlers.JobsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(otelgin.Middleware("coursepulse"))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Tracking-Consent", "X-Device-Type", "X-Browser", "X-OS"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/register", cfg.AuthHandler.Register)
  router.POST("/login", cfg.AuthHandler.Login)
  router.POST("/refresh", cfg.AuthHandler.Refresh)

// ===============
// || Protected ||
// ===============
  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireAuth())
  // Telemetry
  api.POST("/telemetry/events", cfg.TelemetryHandler.IngestEvents)
  // Dashboard
  api.GET("/dashboard", cfg.DashboardHandler.GetStudentDashboard)
  api.GET("/courses/:id/analytics", cfg.DashboardHandler.GetCourseAnalytics)
  // Manual job triggers
  api.POST("/admin/jobs/aggregate", cfg.JobsHandler.RunAggregation)
  api.POST("/admin/jobs/retention", cfg.JobsHandler.RunRetention)

  return router
}
