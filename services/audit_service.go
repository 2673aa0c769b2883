package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sahilchouksey/course-commerce-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditTransferApprove = "transfer_approve"
	AuditTransferReject  = "transfer_reject"
	AuditOrderRepair     = "order_repair"
	AuditRepairSweep     = "repair_sweep"
	AuditPromotionCreate = "promotion_create"
	AuditPromotionUpdate = "promotion_update"
	AuditPromotionDelete = "promotion_delete"
	AuditUserUpdate      = "user_update"
	AuditJobRun          = "job_run"
)

// AuditEntry describes one privileged action
type AuditEntry struct {
	ActorID     uint
	Action      string
	Resource    string
	ResourceID  uint
	Description string
	Details     interface{}
	IPAddress   string
	UserAgent   string
}

// AuditService keeps the admin audit trail
type AuditService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAuditService(db *gorm.DB, logger *slog.Logger) *AuditService {
	return &AuditService{db: db, logger: logger}
}

// Record stores an entry. A failed write is logged and never fails the action itself.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	row := model.AdminAuditLog{
		ActorID:     e.ActorID,
		Action:      e.Action,
		Resource:    e.Resource,
		ResourceID:  e.ResourceID,
		Description: e.Description,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
	}
	if e.Details != nil {
		if b, err := json.Marshal(e.Details); err == nil {
			row.Details = datatypes.JSON(b)
		}
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("action", e.Action), slog.Uint64("actor_id", uint64(e.ActorID)), slog.Any("error", err))
	}
}

// AuditFilter narrows an audit listing
type AuditFilter struct {
	Action   string
	Resource string
	ActorID  uint
	Page
}

func (s *AuditService) List(ctx context.Context, f AuditFilter) ([]model.AdminAuditLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.AdminAuditLog{})
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	var logs []model.AdminAuditLog
	if err := q.Preload("Actor").Order("created_at DESC, id DESC").
		Limit(f.limit()).Offset(f.offset()).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}
