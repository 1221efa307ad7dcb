package repos

import (
  "context"
  "errors"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type AIConfigRepo interface {
  Get(ctx context.Context, tx *gorm.DB) (*types.AIConfig, error)
  GetOrCreate(ctx context.Context, tx *gorm.DB) (*types.AIConfig, error)
  Upsert(ctx context.Context, tx *gorm.DB, config *types.AIConfig) (*types.AIConfig, error)
}

type aiConfigRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAIConfigRepo(db *gorm.DB, baseLog *logger.Logger) AIConfigRepo {
  repoLog := baseLog.With("repo", "AIConfigRepo")
  return &aiConfigRepo{db: db, log: repoLog}
}

func (ar *aiConfigRepo) Get(ctx context.Context, tx *gorm.DB) (*types.AIConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  var result types.AIConfig
  err := transaction.WithContext(ctx).First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (ar *aiConfigRepo) GetOrCreate(ctx context.Context, tx *gorm.DB) (*types.AIConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  existing, err := ar.Get(ctx, transaction)
  if err != nil {
    return nil, err
  }
  if existing != nil {
    return existing, nil
  }
  config := &types.AIConfig{
    Provider:               "openai",
    AutoAnalyzeEnabled:     true,
    AnalysisTimeoutSeconds: 60,
  }
  if err := transaction.WithContext(ctx).Create(config).Error; err != nil {
    return nil, err
  }
  return config, nil
}

func (ar *aiConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, config *types.AIConfig) (*types.AIConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  existing, err := ar.Get(ctx, transaction)
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
