package model

import "time"

// RefreshToken stores issued refresh tokens by a SHA-256 hash of their JTI
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TokenHash string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
