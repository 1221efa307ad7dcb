package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type SystemConfigRepo interface {
  Get(ctx context.Context, tx *gorm.DB) (*types.SystemConfig, error)
  GetOrCreate(ctx context.Context, tx *gorm.DB) (*types.SystemConfig, error)
  Upsert(ctx context.Context, tx *gorm.DB, config *types.SystemConfig) (*types.SystemConfig, error)
}

type systemConfigRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSystemConfigRepo(db *gorm.DB, baseLog *logger.Logger) SystemConfigRepo {
  repoLog := baseLog.With("repo", "SystemConfigRepo")
  return &systemConfigRepo{db: db, log: repoLog}
}

func (sr *systemConfigRepo) Get(ctx context.Context, tx *gorm.DB) (*types.SystemConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  var result types.SystemConfig
  err := transaction.WithContext(ctx).First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (sr *systemConfigRepo) GetOrCreate(ctx context.Context, tx *gorm.DB) (*types.SystemConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  existing, err := sr.Get(ctx, transaction)
  if err != nil {
    return nil, err
  }
  if existing != nil {
    return existing, nil
  }
  config := &types.SystemConfig{
    AppName:               "Protocol Tracker",
    MaxFileSizeMB:         100,
    SessionTimeoutHours:   24,
    AutoScanEnabled:       true,
    AutoScanIntervalHours: 6,
  }
  if err := transaction.WithContext(ctx).Create(config).Error; err != nil {
    return nil, err
  }
  return config, nil
}

func (sr *systemConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, config *types.SystemConfig) (*types.SystemConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  existing, err := sr.Get(ctx, transaction)
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
