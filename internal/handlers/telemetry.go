package handlers

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/services"
)

type TelemetryHandler struct {
  log      *logger.Logger
  eventSvc services.EventService
}

func NewTelemetryHandler(log *logger.Logger, eventSvc services.EventService) *TelemetryHandler {
  return &TelemetryHandler{
    log:      log.With("handler", "TelemetryHandler"),
    eventSvc: eventSvc,
  }
}

// POST /api/telemetry/events
// { events: [{ type, course_id?, lesson_id?, occurred_at?, session_id, payload? }] }
func (h *TelemetryHandler) IngestEvents(c *gin.Context) {
  if strings.EqualFold(c.GetHeader("X-Tracking-Consent"), "denied") {
    RespondOK(c, gin.H{"tracked": 0, "reason": "tracking consent withheld"})
    return
  }

  var req struct {
    Events []services.EventInput `json:"events"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }

  tracked, err := h.eventSvc.Ingest(c.Request.Context(), nil, req.Events)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "ingest_failed", err)
    return
  }
  RespondOK(c, gin.H{"tracked": tracked})
}
