package handlers

import (
  "net/http"
  "time"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/chaintrack/chaintrack-backend/internal/middleware"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type AuthHandler struct {
  authService services.AuthService
  apiKeyRepo  repos.APIKeyRepo
}

func NewAuthHandler(authService services.AuthService, apiKeyRepo repos.APIKeyRepo) *AuthHandler {
  return &AuthHandler{authService: authService, apiKeyRepo: apiKeyRepo}
}

type registerRequest struct {
  Username  string `json:"username" binding:"required"`
  Email     string `json:"email" binding:"required"`
  Password  string `json:"password" binding:"required"`
  FirstName string `json:"first_name"`
  LastName  string `json:"last_name"`
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req registerRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  user := &types.User{
    Username:  req.Username,
    Email:     req.Email,
    Password:  req.Password,
    FirstName: req.FirstName,
    LastName:  req.LastName,
  }
  created, err := ah.authService.RegisterUser(c.Request.Context(), user)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"user": created})
}

type loginRequest struct {
  Email    string `json:"email" binding:"required"`
  Password string `json:"password" binding:"required"`
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req loginRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  token, user, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer", "user": user})
}

func (ah *AuthHandler) Me(c *gin.Context) {
  user := middleware.CurrentUser(c)
  if user == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"user": user})
}

type createAPIKeyRequest struct {
  Name        string     `json:"name" binding:"required"`
  Description string     `json:"description"`
  ExpiresAt   *time.Time `json:"expires_at"`
}

func (ah *AuthHandler) CreateAPIKey(c *gin.Context) {
  user := middleware.CurrentUser(c)
  if user == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
    return
  }
  var req createAPIKeyRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  issued, err := ah.authService.IssueAPIKey(c.Request.Context(), user.ID, req.Name, req.Description, req.ExpiresAt)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"api_key": issued.Key, "secret": issued.Secret})
}

func (ah *AuthHandler) ListAPIKeys(c *gin.Context) {
  user := middleware.CurrentUser(c)
  if user == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
    return
  }
  keys, err := ah.apiKeyRepo.ListByUser(c.Request.Context(), nil, user.ID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"api_keys": keys})
}

func (ah *AuthHandler) RevokeAPIKey(c *gin.Context) {
  user := middleware.CurrentUser(c)
  if user == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
    return
  }
  keyID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key id"})
    return
  }
  if err := ah.authService.RevokeAPIKey(c.Request.Context(), user.ID, keyID); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}
