package cart

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// CartHandler handles the shopping cart endpoints
type CartHandler struct {
	cart      *services.CartService
	validator *validation.Validator
	logger    *slog.Logger
}

func NewCartHandler(cart *services.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: cart, validator: validation.NewValidator(), logger: logger}
}

// AddItemRequest represents a request to put a course in the cart
type AddItemRequest struct {
	CourseID uint `json:"course_id" validate:"required,gt=0"`
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	view, err := h.cart.GetCart(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, view)
}

// Count handles GET /api/v1/cart/count
func (h *CartHandler) Count(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	count, err := h.cart.Count(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, fiber.Map{"count": count})
}

// AddItem handles POST /api/v1/cart/add
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	item, err := h.cart.AddItem(c.UserContext(), userID, req.CourseID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Created(c, "Course added to cart", item)
}

// RemoveItem handles DELETE /api/v1/cart/remove/:itemId
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	itemID, err := handlers.ParamID(c, "itemId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	if err := h.cart.RemoveItem(c.UserContext(), userID, itemID); err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Item removed from cart", nil)
}

// Clear handles DELETE /api/v1/cart/clear
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	if err := h.cart.Clear(c.UserContext(), userID); err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Cart cleared", nil)
}
