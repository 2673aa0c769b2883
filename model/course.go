package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CourseStatusDraft    = "draft"
	CourseStatusActive   = "active"
	CourseStatusArchived = "archived"
)

// Course is a sellable unit of learning content
type Course struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
	Title         string              `gorm:"not null" json:"title"`
	Slug          string              `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string              `gorm:"type:text" json:"description"`
	ThumbnailURL  string              `json:"thumbnail_url,omitempty"`
	Price         decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	DiscountPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"discount_price"`
	Status        string              `gorm:"type:varchar(20);default:'active';index" json:"status"`
	InstructorID  *uint               `gorm:"index" json:"instructor_id,omitempty"`
	TotalStudents int                 `gorm:"default:0" json:"total_students"`

	// Relationships
	Lessons []Lesson `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
}

// EffectivePrice is the price a buyer pays: the discount price when set, the list price otherwise.
func (c *Course) EffectivePrice() decimal.Decimal {
	if c.DiscountPrice.Valid {
		return c.DiscountPrice.Decimal
	}
	return c.Price
}

// IsFree reports whether the course can be enrolled without payment.
func (c *Course) IsFree() bool {
	return c.EffectivePrice().IsZero()
}

// Lesson is an ordered item of a course. Progress counts active lessons only.
type Lesson struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"not null" json:"title"`
	Position  int            `gorm:"default:0" json:"position"`
	Duration  int            `gorm:"default:0" json:"duration"` // seconds
	IsActive  bool           `gorm:"default:true" json:"is_active"`
}
