package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type ClientRepo interface {
  Create(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Client, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.Client, error)
  ListTracked(ctx context.Context, tx *gorm.DB) ([]*types.Client, error)
  Update(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error)
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type clientRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
  repoLog := baseLog.With("repo", "ClientRepo")
  return &clientRepo{db: db, log: repoLog}
}

func (cr *clientRepo) Create(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  if err := transaction.WithContext(ctx).Create(client).Error; err != nil {
    return nil, err
  }
  return client, nil
}

func (cr *clientRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var result types.Client
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// GetByName returns nil without an error when no client has that name;
// updates can reference clients that were since deleted.
func (cr *clientRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var result types.Client
  if err := transaction.WithContext(ctx).
    Where("name = ?", name).
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (cr *clientRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var results []*types.Client
  if err := transaction.WithContext(ctx).
    Order("name asc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// ListTracked returns clients with a non-empty repository URL, i.e. the set
// the poller iterates.
func (cr *clientRepo) ListTracked(ctx context.Context, tx *gorm.DB) ([]*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var results []*types.Client
  if err := transaction.WithContext(ctx).
    Where("github_url IS NOT NULL AND github_url <> ''").
    Order("name asc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cr *clientRepo) Update(ctx context.Context, tx *gorm.DB, client *types.Client) (*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  if err := transaction.WithContext(ctx).Save(client).Error; err != nil {
    return nil, err
  }
  return client, nil
}

func (cr *clientRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.Client{}).Error
}
