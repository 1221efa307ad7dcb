package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// ProtocolUpdate is one observed release or tag of a tracked client. The
// (client, tag) pair is unique; the reconciler checks existence before insert
// and the index backs the race case.
type ProtocolUpdate struct {
  ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name         string     `gorm:"column:name" json:"name"`
  Title        string     `gorm:"column:title" json:"title"`
  Client       string     `gorm:"column:client;not null;index:idx_update_client_tag,unique,priority:1" json:"client"`
  ClientID     *uuid.UUID `gorm:"type:uuid;index" json:"client_id,omitempty"`
  ClientEntity *Client    `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClientID;references:ID" json:"client_entity,omitempty"`
  Tag          string     `gorm:"column:tag;not null;index:idx_update_client_tag,unique,priority:2" json:"tag"`
  Date         time.Time  `gorm:"column:date;not null" json:"date"`
  URL          string     `gorm:"column:url" json:"url,omitempty"`
  Notes        string     `gorm:"column:notes" json:"notes,omitempty"`
  GithubURL    string     `gorm:"column:github_url" json:"github_url,omitempty"`
  Ticket       string     `gorm:"column:ticket" json:"ticket,omitempty"`
  IsDraft      bool       `gorm:"column:is_draft" json:"is_draft"`
  IsPrerelease bool       `gorm:"column:is_prerelease" json:"is_prerelease"`
  IsClosed     bool       `gorm:"column:is_closed" json:"is_closed"`

  // AI analysis, populated at most once by the background flow.
  AISummary          string         `gorm:"column:ai_summary" json:"ai_summary,omitempty"`
  AIKeyChanges       datatypes.JSON `gorm:"column:ai_key_changes;type:jsonb" json:"ai_key_changes,omitempty"`
  AIBreakingChanges  datatypes.JSON `gorm:"column:ai_breaking_changes;type:jsonb" json:"ai_breaking_changes,omitempty"`
  AISecurityUpdates  datatypes.JSON `gorm:"column:ai_security_updates;type:jsonb" json:"ai_security_updates,omitempty"`
  AIUpgradePriority  string         `gorm:"column:ai_upgrade_priority" json:"ai_upgrade_priority,omitempty"`
  AIRiskAssessment   string         `gorm:"column:ai_risk_assessment" json:"ai_risk_assessment,omitempty"`
  AITechnicalSummary string         `gorm:"column:ai_technical_summary" json:"ai_technical_summary,omitempty"`
  AIExecutiveSummary string         `gorm:"column:ai_executive_summary" json:"ai_executive_summary,omitempty"`
  AIEstimatedImpact  string         `gorm:"column:ai_estimated_impact" json:"ai_estimated_impact,omitempty"`
  AIConfidenceScore  *float64       `gorm:"column:ai_confidence_score" json:"ai_confidence_score,omitempty"`
  AIProvider         string         `gorm:"column:ai_provider" json:"ai_provider,omitempty"`
  AIAnalysisDate     *time.Time     `gorm:"column:ai_analysis_date" json:"ai_analysis_date,omitempty"`

  // Hard fork detail.
  AIHardForkDetails    string     `gorm:"column:ai_hard_fork_details" json:"ai_hard_fork_details,omitempty"`
  HardFork             bool       `gorm:"column:hard_fork" json:"hard_fork"`
  ActivationBlock      *int64     `gorm:"column:activation_block" json:"activation_block,omitempty"`
  ActivationDate       *time.Time `gorm:"column:activation_date" json:"activation_date,omitempty"`
  CoordinationRequired bool       `gorm:"column:coordination_required" json:"coordination_required"`

  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProtocolUpdate) TableName() string { return "protocol_update" }

func (u *ProtocolUpdate) HasAIAnalysis() bool {
  return u.AISummary != ""
}
