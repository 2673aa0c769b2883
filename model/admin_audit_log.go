package model

import (
	"time"

	"gorm.io/datatypes"
)

// AdminAuditLog records a privileged action taken by an admin or staff member
type AdminAuditLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ActorID     uint           `gorm:"not null;index" json:"actor_id"`
	Action      string         `gorm:"type:varchar(100);not null;index" json:"action"` // e.g. "transfer_approve", "order_repair"
	Resource    string         `gorm:"type:varchar(100);index" json:"resource"`        // e.g. "payments", "orders"
	ResourceID  uint           `json:"resource_id"`
	Details     datatypes.JSON `json:"details,omitempty"`
	IPAddress   string         `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent   string         `gorm:"type:text" json:"user_agent"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`

	Actor User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

// TableName specifies the table name for AdminAuditLog
func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}
