package middleware

import (
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

const ContextUserKey = "auth_user"

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("Middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

// RequireAuth accepts either an X-API-Key header or a Bearer JWT. API
// keys are what automations use; JWTs come from the login flow.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    if apiKey := extractAPIKey(c); apiKey != "" {
      user, err := am.authService.ValidateAPIKey(c.Request.Context(), apiKey)
      if err != nil {
        c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
        return
      }
      c.Set(ContextUserKey, user)
      c.Next()
      return
    }

    tokenString := extractBearerToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid credentials"})
      return
    }
    user, err := am.authService.ValidateToken(c.Request.Context(), tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
      return
    }
    c.Set(ContextUserKey, user)
    c.Next()
  }
}

func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
  return func(c *gin.Context) {
    user := CurrentUser(c)
    if user == nil || !user.IsAdmin {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
      return
    }
    c.Next()
  }
}

func CurrentUser(c *gin.Context) *types.User {
  value, ok := c.Get(ContextUserKey)
  if !ok {
    return nil
  }
  user, ok := value.(*types.User)
  if !ok {
    return nil
  }
  return user
}

func extractAPIKey(c *gin.Context) string {
  if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
    return key
  }
  return strings.TrimSpace(c.Query("api_key"))
}

func extractBearerToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
