package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"

	PromotionActive   = "active"
	PromotionInactive = "inactive"
)

// Promotion is a discount code with a validity window and usage limits.
type Promotion struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Code           string              `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name           string              `json:"name"`
	Description    string              `gorm:"type:text" json:"description,omitempty"`
	DiscountType   string              `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue  decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	MaxDiscount    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount"`
	MinOrderValue  decimal.Decimal     `gorm:"type:decimal(12,2);not null;default:0" json:"min_order_value"`
	UsageLimit     *int                `json:"usage_limit"` // nil = unlimited
	UsageCount     int                 `gorm:"not null;default:0" json:"usage_count"`
	UserUsageLimit int                 `gorm:"not null;default:1" json:"user_usage_limit"`
	StartDate      time.Time           `json:"start_date"`
	EndDate        time.Time           `json:"end_date"`
	Status         string              `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedBy      *uint               `json:"created_by,omitempty"`
}

// PromotionUsage is an append-only record of one promotion applied to one order.
type PromotionUsage struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	PromotionID    uint            `gorm:"not null;index:idx_usage_promotion_user" json:"promotion_id"`
	UserID         uint            `gorm:"not null;index:idx_usage_promotion_user" json:"user_id"`
	OrderID        uint            `gorm:"not null;index" json:"order_id"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
}

func (PromotionUsage) TableName() string {
	return "promotion_usage"
}
