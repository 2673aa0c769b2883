package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Role         string         `gorm:"type:varchar(20);default:'user'" json:"role"` // admin, staff, user
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	CartItems     []CartItem     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Orders        []Order        `gorm:"foreignKey:UserID" json:"-"`
	Enrollments   []Enrollment   `gorm:"foreignKey:UserID" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsStaffOrAdmin reports whether the role may see other users' orders and payments.
func IsStaffOrAdmin(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}
