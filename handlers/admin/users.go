package admin

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
	"gorm.io/gorm"
)

// UpdateUserRequest changes a user's role or disables the account
type UpdateUserRequest struct {
	Role     string `json:"role" validate:"omitempty,oneof=admin staff user"`
	IsActive *bool  `json:"is_active"`
}

// ListUsers retrieves users with pagination and filters
// GET /admin/users
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := handlers.Page(c)
	p, limit := response.NormalizePage(page.Page, page.Limit)

	q := h.db.WithContext(c.UserContext()).Model(&model.User{})
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	var users []model.User
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((p - 1) * limit).Find(&users).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, users, response.CalculatePagination(p, limit, total))
}

// UpdateUser changes role or active flag. Existing sessions of the user are revoked.
// PUT /admin/users/:id
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	if id == viewer.UserID {
		return response.Forbidden(c, "You cannot change your own account")
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ctx := c.UserContext()
	var user model.User
	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.FromError(c, h.logger, err)
	}

	updates := map[string]interface{}{}
	if req.Role != "" && req.Role != user.Role {
		updates["role"] = req.Role
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return response.Success(c, user)
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	if err := h.tokens.RevokeAllUserTokens(ctx, user.ID); err != nil {
		return response.FromError(c, h.logger, err)
	}

	e := entry(c, viewer.UserID, services.AuditUserUpdate, "users", user.ID)
	e.Details = updates
	h.audit.Record(ctx, e)

	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "User updated successfully", user)
}
