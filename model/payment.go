package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment attempt status
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// Payment is one attempt to pay an order through one provider.
// A terminal row (success or failed) is never mutated again; retries insert a new row.
type Payment struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	OrderID               uint            `gorm:"not null;index" json:"order_id"`
	TransactionCode       string          `gorm:"type:varchar(64);index" json:"transaction_code"`
	PaymentMethod         string          `gorm:"type:varchar(30);not null" json:"payment_method"` // momo, vnpay, manual_transfer
	Amount                decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status                string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ProviderTransactionID string          `gorm:"type:varchar(100)" json:"provider_transaction_id,omitempty"`
	ResponseCode          string          `gorm:"type:varchar(20)" json:"response_code,omitempty"`
	ResponseMessage       string          `gorm:"type:text" json:"response_message,omitempty"`
	CallbackPayload       datatypes.JSON  `json:"callback_payload,omitempty"`
	PaymentDate           *time.Time      `json:"payment_date,omitempty"`
	TransferPhone         string          `gorm:"type:varchar(20)" json:"transfer_phone,omitempty"`
	TransferName          string          `gorm:"type:varchar(255)" json:"transfer_name,omitempty"`
	BillImageURL          string          `gorm:"type:text" json:"bill_image_url,omitempty"`
	VerifiedBy            *uint           `json:"verified_by,omitempty"`
	VerifiedAt            *time.Time      `json:"verified_at,omitempty"`

	Order Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}

// IsTerminal reports whether the attempt already has an outcome.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}
