package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle status
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

// Order payment status. Only reconciliation moves it away from pending.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Order is an immutable snapshot of a purchase intent. Amounts are frozen at checkout.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	OrderCode      string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_code"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"final_amount"`
	PromotionID    *uint           `gorm:"index" json:"promotion_id,omitempty"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus  string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaymentMethod  string          `gorm:"type:varchar(30)" json:"payment_method,omitempty"`
	Note           string          `gorm:"type:text" json:"note,omitempty"`

	// Relationships
	User      User        `gorm:"foreignKey:UserID" json:"-"`
	Items     []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payments  []Payment   `gorm:"foreignKey:OrderID" json:"-"`
	Promotion *Promotion  `gorm:"foreignKey:PromotionID" json:"promotion,omitempty"`
}

// OrderItem freezes the course price at checkout time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	CourseID  uint            `gorm:"not null;index" json:"course_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`

	Course Course `gorm:"foreignKey:CourseID" json:"-"`
}
