package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "github.com/chaintrack/chaintrack-backend/internal/handlers"
  "github.com/chaintrack/chaintrack-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler     *handlers.AuthHandler
  AuthMiddleware  *middleware.AuthMiddleware
  ClientHandler   *handlers.ClientHandler
  ProtocolHandler *handlers.ProtocolHandler
  UpdateHandler   *handlers.UpdateHandler
  ConfigHandler   *handlers.ConfigHandler
  AdminHandler    *handlers.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5173",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/register", cfg.AuthHandler.Register)
  router.POST("/login", cfg.AuthHandler.Login)

// ===============
// || Protected ||
// ===============
  protected := router.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())

  // Auth
  protected.GET("/me", cfg.AuthHandler.Me)
  protected.POST("/api-keys", cfg.AuthHandler.CreateAPIKey)
  protected.GET("/api-keys", cfg.AuthHandler.ListAPIKeys)
  protected.DELETE("/api-keys/:id", cfg.AuthHandler.RevokeAPIKey)

  // Clients
  protected.POST("/clients", cfg.ClientHandler.Create)
  protected.GET("/clients", cfg.ClientHandler.List)
  protected.GET("/clients/:id", cfg.ClientHandler.Get)
  protected.PUT("/clients/:id", cfg.ClientHandler.Update)
  protected.DELETE("/clients/:id", cfg.ClientHandler.Delete)
  protected.GET("/clients/:id/updates", cfg.ClientHandler.ListUpdates)
  protected.GET("/clients/:id/notifications", cfg.ClientHandler.GetNotificationSettings)
  protected.PUT("/clients/:id/notifications", cfg.ClientHandler.UpdateNotificationSettings)

  // Protocols
  protected.POST("/protocols", cfg.ProtocolHandler.Create)
  protected.GET("/protocols", cfg.ProtocolHandler.List)
  protected.GET("/protocols/:id", cfg.ProtocolHandler.Get)
  protected.PUT("/protocols/:id", cfg.ProtocolHandler.Update)
  protected.DELETE("/protocols/:id", cfg.ProtocolHandler.Delete)
  protected.GET("/protocols/:id/clients", cfg.ProtocolHandler.ListClients)
  protected.POST("/protocols/:id/clients/:clientId", cfg.ProtocolHandler.AddClient)
  protected.DELETE("/protocols/:id/clients/:clientId", cfg.ProtocolHandler.RemoveClient)
  protected.GET("/protocols/:id/snapshot-prefixes", cfg.ProtocolHandler.ListPrefixes)
  protected.POST("/protocols/:id/snapshot-prefixes", cfg.ProtocolHandler.CreatePrefix)
  protected.DELETE("/protocols/:id/snapshot-prefixes/:prefixId", cfg.ProtocolHandler.DeletePrefix)
  protected.GET("/protocols/:id/snapshots", cfg.ProtocolHandler.ListSnapshots)
  protected.POST("/protocols/:id/scan-snapshots", cfg.ProtocolHandler.ScanSnapshots)
  protected.GET("/protocols/:id/snapshot-files/*snapshotId", cfg.ProtocolHandler.GetSnapshotFiles)

  // Updates
  protected.GET("/updates", cfg.UpdateHandler.List)
  protected.POST("/updates", cfg.UpdateHandler.Create)
  protected.GET("/updates/:id", cfg.UpdateHandler.Get)
  protected.PATCH("/updates/:id", cfg.UpdateHandler.Patch)
  protected.POST("/updates/:id/analyze", cfg.UpdateHandler.Analyze)

// ===============
// || Admin     ||
// ===============
  admin := protected.Group("/admin")
  admin.Use(cfg.AuthMiddleware.RequireAdmin())

  // Config
  admin.GET("/config/github", cfg.ConfigHandler.GetGitHubConfig)
  admin.PUT("/config/github", cfg.ConfigHandler.PutGitHubConfig)
  admin.GET("/config/system", cfg.ConfigHandler.GetSystemConfig)
  admin.PUT("/config/system", cfg.ConfigHandler.PutSystemConfig)
  admin.GET("/config/storage", cfg.ConfigHandler.GetStorageConfig)
  admin.PUT("/config/storage", cfg.ConfigHandler.PutStorageConfig)
  admin.POST("/config/storage/test", cfg.ConfigHandler.TestStorage)
  admin.GET("/config/notifications", cfg.ConfigHandler.GetNotificationConfig)
  admin.PUT("/config/notifications", cfg.ConfigHandler.PutNotificationConfig)
  admin.POST("/config/notifications/test", cfg.ConfigHandler.TestWebhook)
  admin.GET("/config/ai", cfg.ConfigHandler.GetAIConfig)
  admin.PUT("/config/ai", cfg.ConfigHandler.PutAIConfig)
  admin.POST("/config/ai/test", cfg.ConfigHandler.TestAI)

  // Poller
  admin.POST("/poller/start", cfg.AdminHandler.StartPoller)
  admin.POST("/poller/stop", cfg.AdminHandler.StopPoller)
  admin.GET("/poller/status", cfg.AdminHandler.PollerStatus)
  admin.POST("/poller/poll-now", cfg.AdminHandler.PollNow)

  // Scanner
  admin.POST("/scanner/start", cfg.AdminHandler.StartScanner)
  admin.POST("/scanner/stop", cfg.AdminHandler.StopScanner)
  admin.GET("/scanner/status", cfg.AdminHandler.ScannerStatus)
  admin.POST("/scanner/scan-now", cfg.AdminHandler.ScanNow)

  return router
}
