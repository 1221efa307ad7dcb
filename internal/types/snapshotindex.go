package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// SnapshotIndex is one discovered snapshot archive in the object store,
// unique per (protocol, snapshot id). Rediscovery updates the row in place.
type SnapshotIndex struct {
  ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ProtocolID    uuid.UUID `gorm:"type:uuid;not null;index:idx_protocol_snapshot,unique,priority:1" json:"protocol_id"`
  Protocol      *Protocol `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProtocolID;references:ID" json:"protocol,omitempty"`
  SnapshotID    string    `gorm:"column:snapshot_id;not null;index:idx_protocol_snapshot,unique,priority:2" json:"snapshot_id"`
  IndexFilePath string    `gorm:"column:index_file_path;not null" json:"index_file_path"`
  FileCount     int       `gorm:"column:file_count;not null;default:0" json:"file_count"`
  TotalSize     int64     `gorm:"column:total_size;not null;default:0" json:"total_size"`
  // When the snapshot itself was created (object Last-Modified).
  CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
  // When we last indexed it.
  IndexedAt        time.Time      `gorm:"column:indexed_at;not null;default:now()" json:"indexed_at"`
  SnapshotMetadata datatypes.JSON `gorm:"column:snapshot_metadata;type:jsonb" json:"snapshot_metadata,omitempty"`
}

func (SnapshotIndex) TableName() string { return "snapshot_index" }
