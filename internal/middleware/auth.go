package middleware

import (
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/requestdata"
  "github.com/coursepulse/coursepulse-backend/internal/services"
)

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("Middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
      return
    }
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
      return
    }
    rd.Device = resolveDevice(c)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

func extractToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  return ""
}

// resolveDevice sniffs coarse device metadata from request headers; clients
// can pin exact values with the X-Device-* headers.
func resolveDevice(c *gin.Context) requestdata.DeviceInfo {
  info := requestdata.DeviceInfo{
    DeviceType: c.GetHeader("X-Device-Type"),
    Browser:    c.GetHeader("X-Browser"),
    OS:         c.GetHeader("X-OS"),
    IPAddress:  c.ClientIP(),
  }
  ua := strings.ToLower(c.GetHeader("User-Agent"))
  if info.DeviceType == "" {
    switch {
    case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
      info.DeviceType = "mobile"
    case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
      info.DeviceType = "tablet"
    default:
      info.DeviceType = "desktop"
    }
  }
  if info.Browser == "" {
    switch {
    case strings.Contains(ua, "edg/"):
      info.Browser = "edge"
    case strings.Contains(ua, "chrome"):
      info.Browser = "chrome"
    case strings.Contains(ua, "firefox"):
      info.Browser = "firefox"
    case strings.Contains(ua, "safari"):
      info.Browser = "safari"
    }
  }
  if info.OS == "" {
    switch {
    case strings.Contains(ua, "windows"):
      info.OS = "windows"
    case strings.Contains(ua, "mac os"):
      info.OS = "macos"
    case strings.Contains(ua, "android"):
      info.OS = "android"
    case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
      info.OS = "ios"
    case strings.Contains(ua, "linux"):
      info.OS = "linux"
    }
  }
  return info
}
