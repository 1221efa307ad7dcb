package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type APIKeyRepo interface {
  Create(ctx context.Context, tx *gorm.DB, key *types.APIKey) (*types.APIKey, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.APIKey, error)
  GetByHash(ctx context.Context, tx *gorm.DB, keyHash string) (*types.APIKey, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.APIKey, error)
  Revoke(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  TouchLastUsed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type apiKeyRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAPIKeyRepo(db *gorm.DB, baseLog *logger.Logger) APIKeyRepo {
  repoLog := baseLog.With("repo", "APIKeyRepo")
  return &apiKeyRepo{db: db, log: repoLog}
}

func (ar *apiKeyRepo) Create(ctx context.Context, tx *gorm.DB, key *types.APIKey) (*types.APIKey, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  if err := transaction.WithContext(ctx).Create(key).Error; err != nil {
    return nil, err
  }
  return key, nil
}

func (ar *apiKeyRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.APIKey, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  var result types.APIKey
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (ar *apiKeyRepo) GetByHash(ctx context.Context, tx *gorm.DB, keyHash string) (*types.APIKey, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  var result types.APIKey
  err := transaction.WithContext(ctx).
    Where("key_hash = ? AND is_active = ?", keyHash, true).
    First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (ar *apiKeyRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.APIKey, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  var results []*types.APIKey
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at desc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (ar *apiKeyRepo) Revoke(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  return transaction.WithContext(ctx).
    Model(&types.APIKey{}).
    Where("id = ?", id).
    Update("is_active", false).Error
}

func (ar *apiKeyRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.APIKey{}).Error
}

func (ar *apiKeyRepo) TouchLastUsed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }
  return transaction.WithContext(ctx).
    Model(&types.APIKey{}).
    Where("id = ?", id).
    Update("last_used_at", time.Now().UTC()).Error
}
