package order

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// OrderHandler handles checkout and order queries
type OrderHandler struct {
	orders    *services.OrderService
	validator *validation.Validator
	logger    *slog.Logger
}

func NewOrderHandler(orders *services.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, validator: validation.NewValidator(), logger: logger}
}

// CreateOrderRequest places an order for the whole cart
type CreateOrderRequest struct {
	PromotionCode string `json:"promotion_code" validate:"omitempty,max=50"`
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	result, err := h.orders.Checkout(c.UserContext(), viewer.UserID, req.PromotionCode)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Created(c, "Order created", result)
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	page := handlers.Page(c)
	orders, total, err := h.orders.List(c.UserContext(), viewer, services.OrderFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Page:          page,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, orders, response.CalculatePagination(page.Page, page.Limit, total))
}

// Get handles GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	order, err := h.orders.Get(c.UserContext(), viewer, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, order)
}

// Cancel handles PUT /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	order, err := h.orders.CancelOrder(c.UserContext(), viewer.UserID, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Order cancelled", order)
}
