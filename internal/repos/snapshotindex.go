package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type SnapshotIndexRepo interface {
  Create(ctx context.Context, tx *gorm.DB, snapshot *types.SnapshotIndex) (*types.SnapshotIndex, error)
  GetBySnapshotID(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, snapshotID string) (*types.SnapshotIndex, error)
  ListByProtocol(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, limit, offset int) ([]*types.SnapshotIndex, error)
  Update(ctx context.Context, tx *gorm.DB, snapshot *types.SnapshotIndex) (*types.SnapshotIndex, error)
  Delete(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, snapshotID string) error
}

type snapshotIndexRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSnapshotIndexRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotIndexRepo {
  repoLog := baseLog.With("repo", "SnapshotIndexRepo")
  return &snapshotIndexRepo{db: db, log: repoLog}
}

func (sr *snapshotIndexRepo) Create(ctx context.Context, tx *gorm.DB, snapshot *types.SnapshotIndex) (*types.SnapshotIndex, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  if err := transaction.WithContext(ctx).Create(snapshot).Error; err != nil {
    return nil, err
  }
  return snapshot, nil
}

func (sr *snapshotIndexRepo) GetBySnapshotID(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, snapshotID string) (*types.SnapshotIndex, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  var result types.SnapshotIndex
  err := transaction.WithContext(ctx).
    Where("protocol_id = ? AND snapshot_id = ?", protocolID, snapshotID).
    First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (sr *snapshotIndexRepo) ListByProtocol(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, limit, offset int) ([]*types.SnapshotIndex, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  if limit <= 0 {
    limit = 100
  }
  var results []*types.SnapshotIndex
  if err := transaction.WithContext(ctx).
    Where("protocol_id = ?", protocolID).
    Order("created_at desc").
    Limit(limit).
    Offset(offset).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (sr *snapshotIndexRepo) Update(ctx context.Context, tx *gorm.DB, snapshot *types.SnapshotIndex) (*types.SnapshotIndex, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  if err := transaction.WithContext(ctx).Save(snapshot).Error; err != nil {
    return nil, err
  }
  return snapshot, nil
}

func (sr *snapshotIndexRepo) Delete(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID, snapshotID string) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }
  return transaction.WithContext(ctx).
    Where("protocol_id = ? AND snapshot_id = ?", protocolID, snapshotID).
    Delete(&types.SnapshotIndex{}).Error
}
