package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/requestdata"
  "github.com/coursepulse/coursepulse-backend/internal/services"
)

type DashboardHandler struct {
  log *logger.Logger
  svc services.DashboardService
}

func NewDashboardHandler(log *logger.Logger, svc services.DashboardService) *DashboardHandler {
  return &DashboardHandler{
    log: log.With("handler", "DashboardHandler"),
    svc: svc,
  }
}

// GET /api/dashboard
func (h *DashboardHandler) GetStudentDashboard(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
    return
  }

  dashboard, err := h.svc.GetStudentDashboard(c.Request.Context(), rd.UserID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "dashboard_failed", err)
    return
  }
  RespondOK(c, dashboard)
}

// GET /api/courses/:id/analytics
func (h *DashboardHandler) GetCourseAnalytics(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
    return
  }

  courseID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", errors.New("invalid course id"))
    return
  }

  analytics, err := h.svc.GetCourseAnalytics(c.Request.Context(), courseID, rd.UserID)
  if errors.Is(err, services.ErrNotCourseOwner) {
    RespondError(c, http.StatusForbidden, "forbidden", err)
    return
  }
  if errors.Is(err, services.ErrCourseNotFound) {
    RespondError(c, http.StatusNotFound, "not_found", err)
    return
  }
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "analytics_failed", err)
    return
  }
  RespondOK(c, analytics)
}
