package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// GitHubConfig is a singleton row holding the poller's credential and state.
type GitHubConfig struct {
  ID                     uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  APIKey                 string     `gorm:"column:api_key;not null" json:"api_key"`
  PollingIntervalMinutes int        `gorm:"column:polling_interval_minutes;not null;default:5" json:"polling_interval_minutes"`
  PollerEnabled          bool       `gorm:"column:poller_enabled;not null;default:false" json:"poller_enabled"`
  LastPollTime           *time.Time `gorm:"column:last_poll_time" json:"last_poll_time,omitempty"`
  CreatedAt              time.Time  `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt              time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (GitHubConfig) TableName() string { return "github_config" }

// SystemConfig is a singleton row for app-wide settings, including the
// snapshot scanner's schedule.
type SystemConfig struct {
  ID                    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AppName               string    `gorm:"column:app_name;not null;default:'Protocol Tracker'" json:"app_name"`
  AppDescription        string    `gorm:"column:app_description" json:"app_description,omitempty"`
  MaxFileSizeMB         int       `gorm:"column:max_file_size_mb;not null;default:100" json:"max_file_size_mb"`
  SessionTimeoutHours   int       `gorm:"column:session_timeout_hours;not null;default:24" json:"session_timeout_hours"`
  AutoScanEnabled       bool      `gorm:"column:auto_scan_enabled;not null" json:"auto_scan_enabled"`
  AutoScanIntervalHours int       `gorm:"column:auto_scan_interval_hours;not null;default:6" json:"auto_scan_interval_hours"`
  NotificationEmail     string    `gorm:"column:notification_email" json:"notification_email,omitempty"`
  AdminEmail            string    `gorm:"column:admin_email" json:"admin_email,omitempty"`
  CreatedAt             time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt             time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SystemConfig) TableName() string { return "system_config" }

// StorageConfig is a singleton row describing the snapshot bucket.
type StorageConfig struct {
  ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  BucketName      string    `gorm:"column:bucket_name;not null" json:"bucket_name"`
  EndpointURL     string    `gorm:"column:endpoint_url" json:"endpoint_url,omitempty"`
  CredentialsJSON string    `gorm:"column:credentials_json" json:"credentials_json,omitempty"`
  Region          string    `gorm:"column:region;default:'us-west1'" json:"region,omitempty"`
  CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (StorageConfig) TableName() string { return "storage_config" }

// NotificationConfig is a singleton row. Each channel keeps a legacy single
// URL alongside the newer multi-URL list; dispatch merges both.
type NotificationConfig struct {
  ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  NotificationsEnabled bool      `gorm:"column:notifications_enabled;not null;default:false" json:"notifications_enabled"`

  DiscordEnabled     bool           `gorm:"column:discord_enabled;not null;default:false" json:"discord_enabled"`
  DiscordWebhookURL  string         `gorm:"column:discord_webhook_url" json:"discord_webhook_url,omitempty"`
  DiscordWebhookURLs datatypes.JSON `gorm:"column:discord_webhook_urls;type:jsonb" json:"discord_webhook_urls,omitempty"`

  SlackEnabled     bool           `gorm:"column:slack_enabled;not null;default:false" json:"slack_enabled"`
  SlackWebhookURL  string         `gorm:"column:slack_webhook_url" json:"slack_webhook_url,omitempty"`
  SlackWebhookURLs datatypes.JSON `gorm:"column:slack_webhook_urls;type:jsonb" json:"slack_webhook_urls,omitempty"`

  GenericEnabled     bool           `gorm:"column:generic_enabled;not null;default:false" json:"generic_enabled"`
  GenericWebhookURL  string         `gorm:"column:generic_webhook_url" json:"generic_webhook_url,omitempty"`
  GenericWebhookURLs datatypes.JSON `gorm:"column:generic_webhook_urls;type:jsonb" json:"generic_webhook_urls,omitempty"`
  GenericHeaders     datatypes.JSON `gorm:"column:generic_headers;type:jsonb" json:"generic_headers,omitempty"`

  CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (NotificationConfig) TableName() string { return "notification_config" }

type ClientNotificationSettings struct {
  ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ClientID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"client_id"`
  Client               *Client   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClientID;references:ID" json:"client,omitempty"`
  NotificationsEnabled bool      `gorm:"column:notifications_enabled;not null" json:"notifications_enabled"`
  CreatedAt            time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt            time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ClientNotificationSettings) TableName() string { return "client_notification_settings" }

const (
  AIProviderOpenAI    = "openai"
  AIProviderAnthropic = "anthropic"
  AIProviderLocal     = "local"
)

// AIConfig is a singleton row for the analysis backend.
type AIConfig struct {
  ID                     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AIEnabled              bool      `gorm:"column:ai_enabled;not null;default:false" json:"ai_enabled"`
  Provider               string    `gorm:"column:provider;not null;default:'openai'" json:"provider"`
  APIKey                 string    `gorm:"column:api_key" json:"api_key,omitempty"`
  Model                  string    `gorm:"column:model" json:"model,omitempty"`
  BaseURL                string    `gorm:"column:base_url" json:"base_url,omitempty"`
  AutoAnalyzeEnabled     bool      `gorm:"column:auto_analyze_enabled;not null" json:"auto_analyze_enabled"`
  AnalysisTimeoutSeconds int       `gorm:"column:analysis_timeout_seconds;not null;default:60" json:"analysis_timeout_seconds"`
  CreatedAt              time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt              time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (AIConfig) TableName() string { return "ai_config" }
