package model

import "time"

// CartItem is one pending course selection. A user holds a course at most once.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_course" json:"course_id"`

	Course Course `gorm:"foreignKey:CourseID" json:"course"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
