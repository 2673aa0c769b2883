package notification

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// NotificationHandler handles notification-related API endpoints
type NotificationHandler struct {
	notificationService *services.NotificationService
	logger              *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// GetNotifications handles GET /api/v1/notifications
// Returns the authenticated user's notifications, newest first
func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	page := handlers.Page(c)
	p, limit := response.NormalizePage(page.Page, page.Limit)

	notifications, total, err := h.notificationService.GetNotificationsByUser(c.UserContext(), services.ListNotificationsOptions{
		UserID:     userID,
		UnreadOnly: c.Query("unread_only") == "true",
		Type:       c.Query("type"),
		Limit:      limit,
		Offset:     (p - 1) * limit,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	unreadCount, err := h.notificationService.GetUnreadCount(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	return response.Success(c, fiber.Map{
		"notifications": notifications,
		"unread_count":  unreadCount,
		"pagination":    response.CalculatePagination(p, limit, total),
	})
}

// MarkAsRead handles PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	if err := h.notificationService.MarkAsRead(c.UserContext(), id, userID); err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Notification marked as read", nil)
}

// MarkAllAsRead handles PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	n, err := h.notificationService.MarkAllAsRead(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, fiber.Map{"updated": n})
}
