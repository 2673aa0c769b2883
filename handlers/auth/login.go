package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/model"
	authutil "github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// LoginRequest represents a user login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ip := c.IP()

	var user model.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if !user.IsActive {
		return response.Forbidden(c, "Account is disabled")
	}

	if h.throttle != nil {
		h.throttle.RecordSuccess(c.UserContext(), ip)
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, tokens)
}

func (h *AuthHandler) recordFailure(c *fiber.Ctx, ip string) {
	if h.throttle != nil {
		h.throttle.RecordFailure(c.UserContext(), ip)
	}
}
