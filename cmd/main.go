package main

import (
  "fmt"
  "os"
  "time"
  "github.com/chaintrack/chaintrack-backend/internal/clients/github"
  "github.com/chaintrack/chaintrack-backend/internal/db"
  "github.com/chaintrack/chaintrack-backend/internal/handlers"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/middleware"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/server"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/utils"
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

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  apiKeyRepo := repos.NewAPIKeyRepo(thePG, log)
  clientRepo := repos.NewClientRepo(thePG, log)
  protocolRepo := repos.NewProtocolRepo(thePG, log)
  updateRepo := repos.NewProtocolUpdateRepo(thePG, log)
  snapshotRepo := repos.NewSnapshotIndexRepo(thePG, log)
  ghCfgRepo := repos.NewGitHubConfigRepo(thePG, log)
  sysCfgRepo := repos.NewSystemConfigRepo(thePG, log)
  storageCfgRepo := repos.NewStorageConfigRepo(thePG, log)
  notifCfgRepo := repos.NewNotificationConfigRepo(thePG, log)
  aiCfgRepo := repos.NewAIConfigRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  ghFactory := func(token string) github.Client {
    return github.NewClient(log, github.Options{Token: token})
  }
  storeFactory := services.NewGCSStoreFactory(log)

  aiService := services.NewAIService(thePG, log, aiCfgRepo)
  notifService := services.NewNotificationService(thePG, log, notifCfgRepo, clientRepo)
  authService := services.NewAuthService(thePG, log, userRepo, apiKeyRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
  pollerService := services.NewPollerService(thePG, log, clientRepo, updateRepo, ghCfgRepo, aiService, notifService, ghFactory)
  scannerService := services.NewScannerService(thePG, log, protocolRepo, snapshotRepo, sysCfgRepo, storageCfgRepo, storeFactory)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService, apiKeyRepo)
  clientHandler := handlers.NewClientHandler(clientRepo, updateRepo, notifCfgRepo)
  protocolHandler := handlers.NewProtocolHandler(protocolRepo, snapshotRepo, scannerService)
  updateHandler := handlers.NewUpdateHandler(updateRepo, aiService)
  configHandler := handlers.NewConfigHandler(ghCfgRepo, sysCfgRepo, storageCfgRepo, notifCfgRepo, aiCfgRepo, notifService, aiService, storeFactory)
  adminHandler := handlers.NewAdminHandler(pollerService, scannerService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:     authHandler,
    AuthMiddleware:  authMiddleware,
    ClientHandler:   clientHandler,
    ProtocolHandler: protocolHandler,
    UpdateHandler:   updateHandler,
    ConfigHandler:   configHandler,
    AdminHandler:    adminHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
