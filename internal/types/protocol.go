package types

import (
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Protocol struct {
  ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name        string    `gorm:"column:name;index" json:"name"`
  ChainID     string    `gorm:"column:chain_id" json:"chain_id,omitempty"`
  Network     string    `gorm:"column:network" json:"network,omitempty"`
  Explorer    string    `gorm:"column:explorer" json:"explorer,omitempty"`
  PublicRPC   string    `gorm:"column:public_rpc" json:"public_rpc,omitempty"`
  ProtoFamily string    `gorm:"column:proto_family" json:"proto_family,omitempty"`
  // Legacy single snapshot prefix, e.g. "axelar-axelard-mainnet-full-v1".
  // Superseded by ProtocolSnapshotPrefix rows when any are active.
  SnapshotPrefix string `gorm:"column:snapshot_prefix" json:"snapshot_prefix,omitempty"`

  Clients   []*Client        `gorm:"many2many:protocol_clients;" json:"clients,omitempty"`
  Snapshots []*SnapshotIndex `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProtocolID;references:ID" json:"snapshots,omitempty"`

  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Protocol) TableName() string { return "protocol" }

// DefaultScanPrefix derives the fallback bucket prefix from the protocol name.
func (p *Protocol) DefaultScanPrefix() string {
  name := strings.ReplaceAll(strings.ToLower(p.Name), " ", "-")
  return name + "-"
}

// ProtocolSnapshotPrefix lets one protocol scan several bucket key prefixes.
type ProtocolSnapshotPrefix struct {
  ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ProtocolID uuid.UUID `gorm:"type:uuid;not null;index" json:"protocol_id"`
  Protocol   *Protocol `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProtocolID;references:ID" json:"protocol,omitempty"`
  Prefix     string    `gorm:"column:prefix;not null" json:"prefix"`
  IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
  CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProtocolSnapshotPrefix) TableName() string { return "protocol_snapshot_prefix" }
