package repos

import (
  "context"
  "errors"
  "time"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type GitHubConfigRepo interface {
  Get(ctx context.Context, tx *gorm.DB) (*types.GitHubConfig, error)
  Upsert(ctx context.Context, tx *gorm.DB, config *types.GitHubConfig) (*types.GitHubConfig, error)
  SetPollerEnabled(ctx context.Context, tx *gorm.DB, enabled bool) error
  SetLastPollTime(ctx context.Context, tx *gorm.DB, at time.Time) error
}

type githubConfigRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewGitHubConfigRepo(db *gorm.DB, baseLog *logger.Logger) GitHubConfigRepo {
  repoLog := baseLog.With("repo", "GitHubConfigRepo")
  return &githubConfigRepo{db: db, log: repoLog}
}

// Get returns the singleton row, or nil when none has been created yet.
func (gr *githubConfigRepo) Get(ctx context.Context, tx *gorm.DB) (*types.GitHubConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = gr.db
  }
  var result types.GitHubConfig
  err := transaction.WithContext(ctx).First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (gr *githubConfigRepo) Upsert(ctx context.Context, tx *gorm.DB, config *types.GitHubConfig) (*types.GitHubConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = gr.db
  }
  existing, err := gr.Get(ctx, transaction)
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

func (gr *githubConfigRepo) SetPollerEnabled(ctx context.Context, tx *gorm.DB, enabled bool) error {
  transaction := tx
  if transaction == nil {
    transaction = gr.db
  }
  return transaction.WithContext(ctx).
    Model(&types.GitHubConfig{}).
    Where("1 = 1").
    Updates(map[string]interface{}{"poller_enabled": enabled, "updated_at": time.Now().UTC()}).Error
}

func (gr *githubConfigRepo) SetLastPollTime(ctx context.Context, tx *gorm.DB, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = gr.db
  }
  return transaction.WithContext(ctx).
    Model(&types.GitHubConfig{}).
    Where("1 = 1").
    Updates(map[string]interface{}{"last_poll_time": at, "updated_at": time.Now().UTC()}).Error
}
