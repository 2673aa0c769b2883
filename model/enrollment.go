package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"
)

// Enrollment grants a user access to a course. Unique per (user, course);
// rows are never soft-deleted so the unique index always holds.
type Enrollment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	UserID         uint            `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID       uint            `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	OrderID        *uint           `gorm:"index" json:"order_id,omitempty"`
	Status         string          `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Progress       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"progress"`
	EnrolledAt     time.Time       `json:"enrolled_at"`
	CompletionDate *time.Time      `json:"completion_date,omitempty"`
	LastAccessedAt *time.Time      `json:"last_accessed_at,omitempty"`

	Course         Course           `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	LessonProgress []LessonProgress `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:CASCADE" json:"lesson_progress,omitempty"`
}

// LessonProgress tracks one lesson within one enrollment.
type LessonProgress struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	EnrollmentID  uint       `gorm:"not null;uniqueIndex:idx_progress_enrollment_lesson" json:"enrollment_id"`
	LessonID      uint       `gorm:"not null;uniqueIndex:idx_progress_enrollment_lesson" json:"lesson_id"`
	IsCompleted   bool       `gorm:"default:false" json:"is_completed"`
	WatchPosition int        `gorm:"default:0" json:"watch_position"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}
