package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type NotificationConfigRepo interface {
  Get(ctx context.Context, tx *gorm.DB) (*types.NotificationConfig, error)
  Upsert(ctx context.Context, tx *gorm.DB, config *types.NotificationConfig) (*types.NotificationConfig, error)
  GetClientSettings(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.ClientNotificationSettings, error)
  UpsertClientSettings(ctx context.Context, tx *gorm.DB, settings *types.ClientNotificationSettings) (*types.ClientNotificationSettings, error)
}

type notificationConfigRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNotificationConfigRepo(db *gorm.DB, baseLog *logger.Logger) NotificationConfigRepo {
  repoLog := baseLog.With("repo", "NotificationConfigRepo")
  return &notificationConfigRepo{db: db, log: repoLog}
}

func (nr *notificationConfigRepo) Get(ctx context.Context, tx *gorm.DB) (*types.NotificationConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }
  var result types.NotificationConfig
  err := transaction.WithContext(ctx).First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (nr *notificationConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, config *types.NotificationConfig) (*types.NotificationConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }
  existing, err := nr.Get(ctx, transaction)
  if err != nil {
    return nil, err
  }
  if existing == nil {
    if err := transaction.WithContext(ctx).Create(config).Error; err != nil {
      return nil, err
    }
    return config, nil
  }
  config.ID = existing.ID
  config.CreatedAt = existing.CreatedAt
  if err := transaction.WithContext(ctx).Save(config).Error; err != nil {
    return nil, err
  }
  return config, nil
}

func (nr *notificationConfigRepo) GetClientSettings(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) (*types.ClientNotificationSettings, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }
  var result types.ClientNotificationSettings
  err := transaction.WithContext(ctx).
    Where("client_id = ?", clientID).
    First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (nr *notificationConfigRepo) UpsertClientSettings(ctx context.Context, tx *gorm.DB, settings *types.ClientNotificationSettings) (*types.ClientNotificationSettings, error) {
  transaction := tx
  if transaction == nil {
    transaction = nr.db
  }
  existing, err := nr.GetClientSettings(ctx, transaction, settings.ClientID)
  if err != nil {
    return nil, err
  }
  if existing == nil {
    if err := transaction.WithContext(ctx).Create(settings).Error; err != nil {
      return nil, err
    }
    return settings, nil
  }
  settings.ID = existing.ID
  settings.CreatedAt = existing.CreatedAt
  if err := transaction.WithContext(ctx).Save(settings).Error; err != nil {
    return nil, err
  }
  return settings, nil
}
