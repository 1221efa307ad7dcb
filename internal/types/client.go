package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

const (
  RepoTypeReleases = "releases"
  RepoTypeTags     = "tags"
)

// Client is one tracked protocol client implementation (geth, lighthouse, ...).
type Client struct {
  ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name      string    `gorm:"column:name;index" json:"name"`
  Client    string    `gorm:"column:client" json:"client"`
  GithubURL string    `gorm:"column:github_url" json:"github_url"`
  // "releases" or "tags"; empty means releases.
  RepoType  string    `gorm:"column:repo_type" json:"repo_type,omitempty"`

  Protocols []*Protocol `gorm:"many2many:protocol_clients;" json:"protocols,omitempty"`

  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Client) TableName() string { return "client" }

// ClientString is the legacy string identity protocol updates are keyed by.
func (c *Client) ClientString() string {
  if c.Client != "" {
    return c.Client
  }
  if c.Name != "" {
    return c.Name
  }
  return "Unknown"
}

func (c *Client) DisplayName() string {
  if c.Name != "" {
    return c.Name
  }
  if c.Client != "" {
    return c.Client
  }
  return "Unknown"
}
