package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/model"
	authutil "github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// RefreshRequest carries a refresh token for rotation or logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// refreshClaims validates a refresh token against its signature and the token store
func (h *AuthHandler) refreshClaims(c *fiber.Ctx, raw string) (*authutil.Claims, error) {
	claims, err := h.jwtManager.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != authutil.TokenTypeRefresh {
		return nil, authutil.ErrInvalidToken
	}
	if err := h.tokens.CheckActive(c.UserContext(), claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh handles POST /api/v1/auth/refresh. The presented refresh token is revoked
// and a new pair is issued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	claims, err := h.refreshClaims(c, req.RefreshToken)
	if err != nil {
		if errors.Is(err, authutil.ErrExpiredToken) {
			return response.Unauthorized(c, "Refresh token has expired")
		}
		return response.Unauthorized(c, "Invalid refresh token")
	}

	var user model.User
	if err := h.db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if !user.IsActive {
		return response.Forbidden(c, "Account is disabled")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	if err := h.tokens.Revoke(c.UserContext(), claims.ID); err != nil {
		return response.FromError(c, h.logger, err)
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, tokens)
}

// Logout handles POST /api/v1/auth/logout by revoking the given refresh token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	claims, err := h.refreshClaims(c, req.RefreshToken)
	if err != nil {
		// already unusable
		return response.SuccessWithMessage(c, "Logged out", nil)
	}
	if err := h.tokens.Revoke(c.UserContext(), claims.ID); err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Logged out", nil)
}

// LogoutAll handles POST /api/v1/auth/logout-all: every token of the caller stops working
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	if err := h.tokens.RevokeAllUserTokens(c.UserContext(), userID); err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Logged out from all sessions", nil)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	return response.Success(c, toUserResponse(user))
}
