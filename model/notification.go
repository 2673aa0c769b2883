package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType groups notifications for the client inbox
type NotificationType string

const (
	NotificationTypePayment NotificationType = "payment"
	NotificationTypeCourse  NotificationType = "course"
	NotificationTypeSystem  NotificationType = "system"
)

// UserNotification represents a notification for a user
type UserNotification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	UserID    uint             `gorm:"index;not null" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `gorm:"column:is_read;default:false" json:"read"`
	Metadata  datatypes.JSON   `json:"metadata,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// NotificationMetadata carries the identifiers a client needs to deep-link
type NotificationMetadata struct {
	OrderID      uint   `json:"order_id,omitempty"`
	OrderCode    string `json:"order_code,omitempty"`
	PaymentID    uint   `json:"payment_id,omitempty"`
	CourseID     uint   `json:"course_id,omitempty"`
	EnrollmentID uint   `json:"enrollment_id,omitempty"`
}
