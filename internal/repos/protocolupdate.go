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

type ProtocolUpdateRepo interface {
  Create(ctx context.Context, tx *gorm.DB, update *types.ProtocolUpdate) (*types.ProtocolUpdate, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProtocolUpdate, error)
  GetByClientAndTag(ctx context.Context, tx *gorm.DB, clientString, tag string) (*types.ProtocolUpdate, error)
  ExistsByClientAndTag(ctx context.Context, tx *gorm.DB, clientString, tag string) (bool, error)
  List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.ProtocolUpdate, error)
  ListByClientString(ctx context.Context, tx *gorm.DB, clientString string) ([]*types.ProtocolUpdate, error)
  Update(ctx context.Context, tx *gorm.DB, update *types.ProtocolUpdate) (*types.ProtocolUpdate, error)
  ApplyAIAnalysis(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type protocolUpdateRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProtocolUpdateRepo(db *gorm.DB, baseLog *logger.Logger) ProtocolUpdateRepo {
  repoLog := baseLog.With("repo", "ProtocolUpdateRepo")
  return &protocolUpdateRepo{db: db, log: repoLog}
}

func (ur *protocolUpdateRepo) Create(ctx context.Context, tx *gorm.DB, update *types.ProtocolUpdate) (*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  if err := transaction.WithContext(ctx).Create(update).Error; err != nil {
    return nil, err
  }
  return update, nil
}

func (ur *protocolUpdateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var result types.ProtocolUpdate
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (ur *protocolUpdateRepo) GetByClientAndTag(ctx context.Context, tx *gorm.DB, clientString, tag string) (*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var result types.ProtocolUpdate
  err := transaction.WithContext(ctx).
    Where("client = ? AND tag = ?", clientString, tag).
    First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (ur *protocolUpdateRepo) ExistsByClientAndTag(ctx context.Context, tx *gorm.DB, clientString, tag string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.ProtocolUpdate{}).
    Where("client = ? AND tag = ?", clientString, tag).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}

func (ur *protocolUpdateRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  if limit <= 0 {
    limit = 100
  }
  var results []*types.ProtocolUpdate
  if err := transaction.WithContext(ctx).
    Order("date desc").
    Limit(limit).
    Offset(offset).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (ur *protocolUpdateRepo) ListByClientString(ctx context.Context, tx *gorm.DB, clientString string) ([]*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  var results []*types.ProtocolUpdate
  if err := transaction.WithContext(ctx).
    Where("client = ?", clientString).
    Order("date desc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (ur *protocolUpdateRepo) Update(ctx context.Context, tx *gorm.DB, update *types.ProtocolUpdate) (*types.ProtocolUpdate, error) {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  if err := transaction.WithContext(ctx).Save(update).Error; err != nil {
    return nil, err
  }
  return update, nil
}

// ApplyAIAnalysis writes only the AI columns plus the analysis timestamp.
func (ur *protocolUpdateRepo) ApplyAIAnalysis(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = ur.db
  }
  fields["ai_analysis_date"] = time.Now().UTC()
  return transaction.WithContext(ctx).
    Model(&types.ProtocolUpdate{}).
    Where("id = ?", id).
    Updates(fields).Error
}
