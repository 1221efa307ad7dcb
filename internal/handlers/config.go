package handlers

import (
  "encoding/json"
  "net/http"
  "github.com/gin-gonic/gin"
  "gorm.io/datatypes"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type ConfigHandler struct {
  ghCfgRepo      repos.GitHubConfigRepo
  sysCfgRepo     repos.SystemConfigRepo
  storageCfgRepo repos.StorageConfigRepo
  notifCfgRepo   repos.NotificationConfigRepo
  aiCfgRepo      repos.AIConfigRepo
  notifier       services.NotificationService
  aiService      services.AIService
  storeFactory   services.ObjectStoreFactory
}

func NewConfigHandler(
  ghCfgRepo repos.GitHubConfigRepo,
  sysCfgRepo repos.SystemConfigRepo,
  storageCfgRepo repos.StorageConfigRepo,
  notifCfgRepo repos.NotificationConfigRepo,
  aiCfgRepo repos.AIConfigRepo,
  notifier services.NotificationService,
  aiService services.AIService,
  storeFactory services.ObjectStoreFactory,
) *ConfigHandler {
  return &ConfigHandler{
    ghCfgRepo:      ghCfgRepo,
    sysCfgRepo:     sysCfgRepo,
    storageCfgRepo: storageCfgRepo,
    notifCfgRepo:   notifCfgRepo,
    aiCfgRepo:      aiCfgRepo,
    notifier:       notifier,
    aiService:      aiService,
    storeFactory:   storeFactory,
  }
}

// ---- GitHub ----

func (ch *ConfigHandler) GetGitHubConfig(c *gin.Context) {
  cfg, err := ch.ghCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if cfg == nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "github config not set"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"config": redactGitHubConfig(cfg)})
}

type githubConfigRequest struct {
  APIKey                 string `json:"api_key"`
  PollingIntervalMinutes int    `json:"polling_interval_minutes"`
}

func (ch *ConfigHandler) PutGitHubConfig(c *gin.Context) {
  var req githubConfigRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  existing, err := ch.ghCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  cfg := existing
  if cfg == nil {
    cfg = &types.GitHubConfig{PollingIntervalMinutes: 5}
  }
  if req.APIKey != "" {
    cfg.APIKey = req.APIKey
  }
  if req.PollingIntervalMinutes > 0 {
    cfg.PollingIntervalMinutes = req.PollingIntervalMinutes
  }
  saved, err := ch.ghCfgRepo.Upsert(c.Request.Context(), nil, cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"config": redactGitHubConfig(saved)})
}

func redactGitHubConfig(cfg *types.GitHubConfig) *types.GitHubConfig {
  redacted := *cfg
  if redacted.APIKey != "" {
    redacted.APIKey = "********"
  }
  return &redacted
}

// ---- System ----

func (ch *ConfigHandler) GetSystemConfig(c *gin.Context) {
  cfg, err := ch.sysCfgRepo.GetOrCreate(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"config": cfg})
}

type systemConfigRequest struct {
  AppName               *string `json:"app_name"`
  AppDescription        *string `json:"app_description"`
  AutoScanEnabled       *bool   `json:"auto_scan_enabled"`
  AutoScanIntervalHours *int    `json:"auto_scan_interval_hours"`
  NotificationEmail     *string `json:"notification_email"`
  AdminEmail            *string `json:"admin_email"`
}

func (ch *ConfigHandler) PutSystemConfig(c *gin.Context) {
  var req systemConfigRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  cfg, err := ch.sysCfgRepo.GetOrCreate(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if req.AppName != nil {
    cfg.AppName = *req.AppName
  }
  if req.AppDescription != nil {
    cfg.AppDescription = *req.AppDescription
  }
  if req.AutoScanEnabled != nil {
    cfg.AutoScanEnabled = *req.AutoScanEnabled
  }
  if req.AutoScanIntervalHours != nil && *req.AutoScanIntervalHours > 0 {
    cfg.AutoScanIntervalHours = *req.AutoScanIntervalHours
  }
  if req.NotificationEmail != nil {
    cfg.NotificationEmail = *req.NotificationEmail
  }
  if req.AdminEmail != nil {
    cfg.AdminEmail = *req.AdminEmail
  }
  saved, err := ch.sysCfgRepo.Upsert(c.Request.Context(), nil, cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"config": saved})
}

// ---- Storage ----

func (ch *ConfigHandler) GetStorageConfig(c *gin.Context) {
  cfg, err := ch.storageCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if cfg == nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "storage config not set"})
    return
  }
  redacted := *cfg
  if redacted.CredentialsJSON != "" {
    redacted.CredentialsJSON = "********"
  }
  c.JSON(http.StatusOK, gin.H{"config": &redacted})
}

type storageConfigRequest struct {
  BucketName      string `json:"bucket_name"`
  EndpointURL     string `json:"endpoint_url"`
  CredentialsJSON string `json:"credentials_json"`
  Region          string `json:"region"`
}

func (ch *ConfigHandler) PutStorageConfig(c *gin.Context) {
  var req storageConfigRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  existing, err := ch.storageCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  cfg := existing
  if cfg == nil {
    cfg = &types.StorageConfig{}
  }
  if req.BucketName != "" {
    cfg.BucketName = req.BucketName
  }
  if req.EndpointURL != "" {
    cfg.EndpointURL = req.EndpointURL
  }
  if req.CredentialsJSON != "" {
    cfg.CredentialsJSON = req.CredentialsJSON
  }
  if req.Region != "" {
    cfg.Region = req.Region
  }
  saved, err := ch.storageCfgRepo.Upsert(c.Request.Context(), nil, cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "saved", "bucket_name": saved.BucketName})
}

// TestStorage opens the bucket and lists a handful of keys.
func (ch *ConfigHandler) TestStorage(c *gin.Context) {
  cfg, err := ch.storageCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if cfg == nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "storage config not set"})
    return
  }
  store, err := ch.storeFactory(c.Request.Context(), cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  objects, err := store.ListObjects(c.Request.Context(), "", 5)
  if err != nil {
    c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "ok", "bucket": store.BucketName(), "sample_objects": len(objects)})
}

// ---- Notifications ----

func (ch *ConfigHandler) GetNotificationConfig(c *gin.Context) {
  cfg, err := ch.notifCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if cfg == nil {
    cfg = &types.NotificationConfig{}
  }
  c.JSON(http.StatusOK, gin.H{"config": cfg})
}

type notificationConfigRequest struct {
  NotificationsEnabled *bool `json:"notifications_enabled"`

  DiscordEnabled     *bool    `json:"discord_enabled"`
  DiscordWebhookURL  *string  `json:"discord_webhook_url"`
  DiscordWebhookURLs []string `json:"discord_webhook_urls"`

  SlackEnabled     *bool    `json:"slack_enabled"`
  SlackWebhookURL  *string  `json:"slack_webhook_url"`
  SlackWebhookURLs []string `json:"slack_webhook_urls"`

  GenericEnabled     *bool             `json:"generic_enabled"`
  GenericWebhookURL  *string           `json:"generic_webhook_url"`
  GenericWebhookURLs []string          `json:"generic_webhook_urls"`
  GenericHeaders     map[string]string `json:"generic_headers"`
}

func (ch *ConfigHandler) PutNotificationConfig(c *gin.Context) {
  var req notificationConfigRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  cfg, err := ch.notifCfgRepo.Get(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if cfg == nil {
    cfg = &types.NotificationConfig{}
  }

  if req.NotificationsEnabled != nil {
    cfg.NotificationsEnabled = *req.NotificationsEnabled
  }
  if req.DiscordEnabled != nil {
    cfg.DiscordEnabled = *req.DiscordEnabled
  }
  if req.DiscordWebhookURL != nil {
    cfg.DiscordWebhookURL = *req.DiscordWebhookURL
  }
  if req.DiscordWebhookURLs != nil {
    cfg.DiscordWebhookURLs = mustJSON(req.DiscordWebhookURLs)
  }
  if req.SlackEnabled != nil {
    cfg.SlackEnabled = *req.SlackEnabled
  }
  if req.SlackWebhookURL != nil {
    cfg.SlackWebhookURL = *req.SlackWebhookURL
  }
  if req.SlackWebhookURLs != nil {
    cfg.SlackWebhookURLs = mustJSON(req.SlackWebhookURLs)
  }
  if req.GenericEnabled != nil {
    cfg.GenericEnabled = *req.GenericEnabled
  }
  if req.GenericWebhookURL != nil {
    cfg.GenericWebhookURL = *req.GenericWebhookURL
  }
  if req.GenericWebhookURLs != nil {
    cfg.GenericWebhookURLs = mustJSON(req.GenericWebhookURLs)
  }
  if req.GenericHeaders != nil {
    cfg.GenericHeaders = mustJSON(req.GenericHeaders)
  }

  saved, err := ch.notifCfgRepo.Upsert(c.Request.Context(), nil, cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"config": saved})
}

type testWebhookRequest struct {
  Channel string `json:"channel" binding:"required"`
  URL     string `json:"url" binding:"required"`
}

func (ch *ConfigHandler) TestWebhook(c *gin.Context) {
  var req testWebhookRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  if err := ch.notifier.TestWebhook(c.Request.Context(), req.Channel, req.URL); err != nil {
    c.JSON(http.StatusBadGateway, gin.H{"status": "failed", "error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---- AI ----

func (ch *ConfigHandler) GetAIConfig(c *gin.Context) {
  cfg, err := ch.aiCfgRepo.GetOrCreate(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  redacted := *cfg
  if redacted.APIKey != "" {
    redacted.APIKey = "********"
  }
  c.JSON(http.StatusOK, gin.H{"config": &redacted})
}

type aiConfigRequest struct {
  AIEnabled              *bool   `json:"ai_enabled"`
  Provider               *string `json:"provider"`
  APIKey                 *string `json:"api_key"`
  Model                  *string `json:"model"`
  BaseURL                *string `json:"base_url"`
  AutoAnalyzeEnabled     *bool   `json:"auto_analyze_enabled"`
  AnalysisTimeoutSeconds *int    `json:"analysis_timeout_seconds"`
}

func (ch *ConfigHandler) PutAIConfig(c *gin.Context) {
  var req aiConfigRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  cfg, err := ch.aiCfgRepo.GetOrCreate(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if req.AIEnabled != nil {
    cfg.AIEnabled = *req.AIEnabled
  }
  if req.Provider != nil {
    switch *req.Provider {
    case types.AIProviderOpenAI, types.AIProviderAnthropic, types.AIProviderLocal:
      cfg.Provider = *req.Provider
    default:
      c.JSON(http.StatusBadRequest, gin.H{"error": "unknown ai provider"})
      return
    }
  }
  if req.APIKey != nil {
    cfg.APIKey = *req.APIKey
  }
  if req.Model != nil {
    cfg.Model = *req.Model
  }
  if req.BaseURL != nil {
    cfg.BaseURL = *req.BaseURL
  }
  if req.AutoAnalyzeEnabled != nil {
    cfg.AutoAnalyzeEnabled = *req.AutoAnalyzeEnabled
  }
  if req.AnalysisTimeoutSeconds != nil && *req.AnalysisTimeoutSeconds > 0 {
    cfg.AnalysisTimeoutSeconds = *req.AnalysisTimeoutSeconds
  }
  saved, err := ch.aiCfgRepo.Upsert(c.Request.Context(), nil, cfg)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  redacted := *saved
  if redacted.APIKey != "" {
    redacted.APIKey = "********"
  }
  c.JSON(http.StatusOK, gin.H{"config": &redacted})
}

func (ch *ConfigHandler) TestAI(c *gin.Context) {
  if err := ch.aiService.TestConnection(c.Request.Context()); err != nil {
    c.JSON(http.StatusBadGateway, gin.H{"status": "failed", "error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func mustJSON(v any) datatypes.JSON {
  b, err := json.Marshal(v)
  if err != nil {
    return datatypes.JSON("null")
  }
  return datatypes.JSON(b)
}
