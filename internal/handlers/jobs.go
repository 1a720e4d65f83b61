package handlers

import (
  "errors"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/requestdata"
  "github.com/coursepulse/coursepulse-backend/internal/services"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

// JobsHandler exposes the batch jobs for manual re-runs; both jobs are
// idempotent so triggering them out of schedule is always safe.
type JobsHandler struct {
  log         *logger.Logger
  aggregation services.AggregationService
  retention   services.RetentionService
}

func NewJobsHandler(log *logger.Logger, aggregation services.AggregationService, retention services.RetentionService) *JobsHandler {
  return &JobsHandler{
    log:         log.With("handler", "JobsHandler"),
    aggregation: aggregation,
    retention:   retention,
  }
}

// POST /api/admin/jobs/aggregate?date=YYYY-MM-DD (defaults to yesterday)
func (h *JobsHandler) RunAggregation(c *gin.Context) {
  if !requireInstructor(c) {
    return
  }

  day := time.Now().UTC().AddDate(0, 0, -1)
  if raw := c.Query("date"); raw != "" {
    parsed, err := time.Parse("2006-01-02", raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "bad_request", errors.New("date must be YYYY-MM-DD"))
      return
    }
    day = parsed
  }

  if err := h.aggregation.Run(c.Request.Context(), day); err != nil {
    RespondError(c, http.StatusInternalServerError, "aggregation_failed", err)
    return
  }
  RespondOK(c, gin.H{"day": day.Format("2006-01-02")})
}

// POST /api/admin/jobs/retention
func (h *JobsHandler) RunRetention(c *gin.Context) {
  if !requireInstructor(c) {
    return
  }

  deleted, err := h.retention.Run(c.Request.Context())
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "retention_failed", err)
    return
  }
  RespondOK(c, gin.H{"deleted": deleted})
}

func requireInstructor(c *gin.Context) bool {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.Role != types.RoleInstructor {
    RespondError(c, http.StatusForbidden, "forbidden", errors.New("instructor role required"))
    return false
  }
  return true
}
