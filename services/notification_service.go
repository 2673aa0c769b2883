package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier persists in-app notifications. Reconciliation and enrollment depend on it.
type Notifier interface {
	Notify(ctx context.Context, req CreateNotificationRequest) error
	NotifyRoles(ctx context.Context, roles []string, req CreateNotificationRequest) error
}

// NotificationService handles user notifications
type NotificationService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewNotificationService(db *gorm.DB, logger *slog.Logger) *NotificationService {
	return &NotificationService{db: db, logger: logger}
}

// CreateNotificationRequest represents a request to create a notification
type CreateNotificationRequest struct {
	UserID   uint
	Type     model.NotificationType
	Title    string
	Message  string
	Link     string
	Metadata *model.NotificationMetadata
}

// ListNotificationsOptions represents options for listing notifications
type ListNotificationsOptions struct {
	UserID     uint
	UnreadOnly bool
	Type       string
	Limit      int
	Offset     int
}

func (s *NotificationService) build(req CreateNotificationRequest) (*model.UserNotification, error) {
	n := &model.UserNotification{
		UserID:  req.UserID,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	}
	if req.Metadata != nil {
		metadataJSON, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		n.Metadata = datatypes.JSON(metadataJSON)
	}
	return n, nil
}

// Notify creates one notification for req.UserID
func (s *NotificationService) Notify(ctx context.Context, req CreateNotificationRequest) error {
	n, err := s.build(req)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	s.logger.DebugContext(ctx, "notification created",
		slog.Uint64("notification_id", uint64(n.ID)),
		slog.Uint64("user_id", uint64(req.UserID)),
		slog.String("title", req.Title))
	return nil
}

// NotifyRoles fans one notification out to every active user holding one of roles
func (s *NotificationService) NotifyRoles(ctx context.Context, roles []string, req CreateNotificationRequest) error {
	var userIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("role IN ? AND is_active = ?", roles, true).
		Pluck("id", &userIDs).Error; err != nil {
		return fmt.Errorf("failed to load recipients: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	rows := make([]*model.UserNotification, 0, len(userIDs))
	for _, id := range userIDs {
		req.UserID = id
		n, err := s.build(req)
		if err != nil {
			return err
		}
		rows = append(rows, n)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	return nil
}

// GetNotificationsByUser retrieves notifications for a user, most recent first
func (s *NotificationService) GetNotificationsByUser(ctx context.Context, opts ListNotificationsOptions) ([]model.UserNotification, int64, error) {
	var notifications []model.UserNotification
	var total int64

	query := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ?", opts.UserID)

	if opts.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if opts.Type != "" {
		query = query.Where("type = ?", opts.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(opts.Offset).
		Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return notifications, total, nil
}

// MarkAsRead marks a notification as read
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID uint, userID uint) error {
	result := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)

	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFoundErr("Notification not found")
	}
	return nil
}

// MarkAllAsRead marks all notifications for a user as read
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetUnreadCount returns the count of unread notifications for a user
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
