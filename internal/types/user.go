package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type User struct {
  ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Username  string     `gorm:"column:username;uniqueIndex" json:"username"`
  Email     string     `gorm:"column:email;uniqueIndex" json:"email"`
  Password  string     `gorm:"column:password" json:"-"`
  FirstName string     `gorm:"column:first_name" json:"first_name,omitempty"`
  LastName  string     `gorm:"column:last_name" json:"last_name,omitempty"`
  IsAdmin   bool       `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
  IsActive  bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
  LastLogin *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`

  APIKeys []*APIKey `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"api_keys,omitempty"`

  CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

// APIKey stores only the sha256 digest of the issued key plus a short display
// prefix; the plaintext is returned exactly once at creation.
type APIKey struct {
  ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
  User        *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  KeyHash     string     `gorm:"column:key_hash;uniqueIndex;not null" json:"-"`
  KeyPrefix   string     `gorm:"column:key_prefix;not null" json:"key_prefix"`
  Name        string     `gorm:"column:name;not null" json:"name"`
  Description string     `gorm:"column:description" json:"description,omitempty"`
  ExpiresAt   *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
  LastUsedAt  *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
  IsActive    bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
  CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (APIKey) TableName() string { return "api_key" }
