package database

import "time"

// User is a panel login. The first (and normally only) user is created
// through the one-time admin registration gate.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:64" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SSHAccount is the record-store half of a managed login identity. A row
// exists iff the matching OS account is intended to exist; the orchestrator
// keeps the two sides consistent.
type SSHAccount struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string    `gorm:"uniqueIndex;not null;size:32" json:"username"`
	Password   string    `gorm:"not null" json:"-"` // fernet-encrypted, never serialized
	ExpiryDate time.Time `gorm:"not null" json:"expiry_date"`
	MaxLogin   int       `gorm:"not null;default:1" json:"max_login"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
