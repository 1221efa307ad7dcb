package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type ProtocolRepo interface {
  Create(ctx context.Context, tx *gorm.DB, protocol *types.Protocol) (*types.Protocol, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Protocol, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Protocol, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.Protocol, error)
  Update(ctx context.Context, tx *gorm.DB, protocol *types.Protocol) (*types.Protocol, error)
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  AddClient(ctx context.Context, tx *gorm.DB, protocolID, clientID uuid.UUID) error
  RemoveClient(ctx context.Context, tx *gorm.DB, protocolID, clientID uuid.UUID) error
  ListClients(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID) ([]*types.Client, error)
  ListActivePrefixes(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID) ([]*types.ProtocolSnapshotPrefix, error)
  CreatePrefix(ctx context.Context, tx *gorm.DB, prefix *types.ProtocolSnapshotPrefix) (*types.ProtocolSnapshotPrefix, error)
  DeletePrefix(ctx context.Context, tx *gorm.DB, prefixID uuid.UUID) error
}

type protocolRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProtocolRepo(db *gorm.DB, baseLog *logger.Logger) ProtocolRepo {
  repoLog := baseLog.With("repo", "ProtocolRepo")
  return &protocolRepo{db: db, log: repoLog}
}

func (pr *protocolRepo) Create(ctx context.Context, tx *gorm.DB, protocol *types.Protocol) (*types.Protocol, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  if err := transaction.WithContext(ctx).Create(protocol).Error; err != nil {
    return nil, err
  }
  return protocol, nil
}

func (pr *protocolRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Protocol, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var result types.Protocol
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (pr *protocolRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Protocol, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var result types.Protocol
  if err := transaction.WithContext(ctx).
    Where("name = ?", name).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (pr *protocolRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Protocol, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var results []*types.Protocol
  if err := transaction.WithContext(ctx).
    Order("name asc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *protocolRepo) Update(ctx context.Context, tx *gorm.DB, protocol *types.Protocol) (*types.Protocol, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  if err := transaction.WithContext(ctx).Save(protocol).Error; err != nil {
    return nil, err
  }
  return protocol, nil
}

func (pr *protocolRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", id).
    Delete(&types.Protocol{}).Error
}

func (pr *protocolRepo) AddClient(ctx context.Context, tx *gorm.DB, protocolID, clientID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  protocol := types.Protocol{ID: protocolID}
  client := types.Client{ID: clientID}
  return transaction.WithContext(ctx).
    Model(&protocol).
    Association("Clients").
    Append(&client)
}

func (pr *protocolRepo) RemoveClient(ctx context.Context, tx *gorm.DB, protocolID, clientID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  protocol := types.Protocol{ID: protocolID}
  client := types.Client{ID: clientID}
  return transaction.WithContext(ctx).
    Model(&protocol).
    Association("Clients").
    Delete(&client)
}

func (pr *protocolRepo) ListClients(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID) ([]*types.Client, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  protocol := types.Protocol{ID: protocolID}
  var results []*types.Client
  if err := transaction.WithContext(ctx).
    Model(&protocol).
    Association("Clients").
    Find(&results); err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *protocolRepo) ListActivePrefixes(ctx context.Context, tx *gorm.DB, protocolID uuid.UUID) ([]*types.ProtocolSnapshotPrefix, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var results []*types.ProtocolSnapshotPrefix
  if err := transaction.WithContext(ctx).
    Where("protocol_id = ? AND is_active = ?", protocolID, true).
    Order("prefix asc").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (pr *protocolRepo) CreatePrefix(ctx context.Context, tx *gorm.DB, prefix *types.ProtocolSnapshotPrefix) (*types.ProtocolSnapshotPrefix, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  if err := transaction.WithContext(ctx).Create(prefix).Error; err != nil {
    return nil, err
  }
  return prefix, nil
}

func (pr *protocolRepo) DeletePrefix(ctx context.Context, tx *gorm.DB, prefixID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", prefixID).
    Delete(&types.ProtocolSnapshotPrefix{}).Error
}
