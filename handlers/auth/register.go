package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/model"
	authutil "github.com/sahilchouksey/course-commerce-api/utils/auth"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db         *gorm.DB
	jwtManager *authutil.JWTManager
	tokens     *authutil.TokenStore
	throttle   *middleware.LoginThrottle
	validator  *validation.Validator
	logger     *slog.Logger
	accessTTL  time.Duration
}

// NewAuthHandler creates a new auth handler. throttle may be nil when Redis is not configured.
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, accessTTL time.Duration,
	throttle *middleware.LoginThrottle, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		db:         db,
		jwtManager: jwtManager,
		tokens:     authutil.NewTokenStore(db),
		throttle:   throttle,
		validator:  validation.NewValidator(),
		logger:     logger,
		accessTTL:  accessTTL,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse is returned by register, login and refresh
type TokenResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // seconds
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles POST /api/v1/auth/register. Self-registration always gets the user role.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	var existing model.User
	err := h.db.WithContext(c.UserContext()).Unscoped().Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return response.Error(c, fiber.StatusConflict, "Email is already registered", "CONFLICT")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.FromError(c, h.logger, err)
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}

	tokens, err := h.issueTokens(c, &user)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	h.logger.InfoContext(c.UserContext(), "user registered", slog.Uint64("user_id", uint64(user.ID)))
	return response.Created(c, "Registration successful", tokens)
}

// issueTokens signs an access/refresh pair and persists the refresh token
func (h *AuthHandler) issueTokens(c *fiber.Ctx, user *model.User) (*TokenResponse, error) {
	access, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	refresh, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	if err := h.tokens.Save(c.UserContext(), user.ID, refresh); err != nil {
		return nil, err
	}

	return &TokenResponse{
		User:         toUserResponse(user),
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresIn:    int(h.accessTTL.Seconds()),
	}, nil
}
