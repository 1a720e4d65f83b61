package main

import (
  "context"
  "fmt"
  "os"
  "time"
  "github.com/coursepulse/coursepulse-backend/internal/db"
  "github.com/coursepulse/coursepulse-backend/internal/handlers"
  "github.com/coursepulse/coursepulse-backend/internal/jobs"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/middleware"
  "github.com/coursepulse/coursepulse-backend/internal/observability"
  "github.com/coursepulse/coursepulse-backend/internal/repos"
  "github.com/coursepulse/coursepulse-backend/internal/server"
  "github.com/coursepulse/coursepulse-backend/internal/services"
  "github.com/coursepulse/coursepulse-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "coursepulse",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  defer func() {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = otelShutdown(ctx)
  }()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  retentionDays := utils.GetEnvAsInt("RETENTION_DAYS", services.DefaultRetentionDays, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  courseRepo := repos.NewCourseRepo(thePG, log)
  activityEventRepo := repos.NewActivityEventRepo(thePG, log)
  courseProgressRepo := repos.NewCourseProgressRepo(thePG, log)
  videoProgressRepo := repos.NewVideoProgressRepo(thePG, log)
  assessmentAttemptRepo := repos.NewAssessmentAttemptRepo(thePG, log)
  dailyStatRepo := repos.NewDailyStatRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  projectorService := services.NewProjectorService(thePG, log, courseRepo, courseProgressRepo, videoProgressRepo, assessmentAttemptRepo)
  eventService := services.NewEventService(thePG, log, activityEventRepo, projectorService)
  dashboardCache, err := services.NewDashboardCache(log)
  if err != nil {
    log.Warn("Dashboard cache unavailable, serving uncached", "error", err)
    dashboardCache = nil
  }
  dashboardService := services.NewDashboardService(thePG, log, courseRepo, courseProgressRepo, dailyStatRepo, activityEventRepo, dashboardCache)
  aggregationService := services.NewAggregationService(thePG, log, activityEventRepo, dailyStatRepo)
  retentionService := services.NewRetentionService(thePG, log, activityEventRepo, retentionDays)

  // Scheduled jobs
  log.Info("Setting up scheduled jobs from main...")
  scheduler := jobs.NewCronScheduler(log)
  if err := scheduler.ScheduleDaily("daily_aggregation", func(ctx context.Context, day time.Time) {
    if err := aggregationService.Run(ctx, day); err != nil {
      log.Error("Daily aggregation run failed", "day", day.Format("2006-01-02"), "error", err)
    }
  }); err != nil {
    log.Error("Failed to schedule daily aggregation", "error", err)
    os.Exit(1)
  }
  if err := scheduler.ScheduleWeekly("event_retention", func(ctx context.Context) {
    if _, err := retentionService.Run(ctx); err != nil {
      log.Error("Retention run failed", "error", err)
    }
  }); err != nil {
    log.Error("Failed to schedule retention", "error", err)
    os.Exit(1)
  }
  scheduler.Start()
  defer scheduler.Stop()

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  telemetryHandler := handlers.NewTelemetryHandler(log, eventService)
  dashboardHandler := handlers.NewDashboardHandler(log, dashboardService)
  jobsHandler := handlers.NewJobsHandler(log, aggregationService, retentionService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:      authHandler,
    AuthMiddleware:   authMiddleware,
    TelemetryHandler: telemetryHandler,
    DashboardHandler: dashboardHandler,
    JobsHandler:      jobsHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
