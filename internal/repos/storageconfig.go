package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type StorageConfigRepo interface {
  Get(ctx context.Context, tx *gorm.DB) (*types.StorageConfig, error)
  Upsert(ctx context.Context, tx *gorm.DB, config *types.StorageConfig) (*types.StorageConfig, error)
}

type storageConfigRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStorageConfigRepo(db *gorm.DB, baseLog *logger.Logger) StorageConfigRepo {
  repoLog := baseLog.With("repo", "StorageConfigRepo")
  return &storageConfigRepo{db: db, log: repoLog}
}

func (sr *storageConfigRepo) Get(ctx context.Context, tx *gorm.DB) (*types.StorageConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  var result types.StorageConfig
  err := transaction.WithContext(ctx).First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (sr *storageConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, config *types.StorageConfig) (*types.StorageConfig, error) {
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
