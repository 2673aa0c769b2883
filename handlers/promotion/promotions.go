package promotion

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/middleware"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
	"github.com/shopspring/decimal"
)

// PromotionHandler serves promotion previews to buyers and promotion management to admins
type PromotionHandler struct {
	promos    *services.PromotionService
	audit     *services.AuditService
	validator *validation.Validator
	logger    *slog.Logger
}

func NewPromotionHandler(promos *services.PromotionService, audit *services.AuditService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{promos: promos, audit: audit, validator: validation.NewValidator(), logger: logger}
}

func (h *PromotionHandler) record(c *fiber.Ctx, action string, id uint, details interface{}) {
	actor, _ := middleware.GetUserID(c)
	h.audit.Record(c.UserContext(), services.AuditEntry{
		ActorID:    actor,
		Action:     action,
		Resource:   "promotions",
		ResourceID: id,
		Details:    details,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
}

// ValidateRequest asks what a code would take off an order of the given amount
type ValidateRequest struct {
	Code   string          `json:"code" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ValidateResponse is the discount preview
type ValidateResponse struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

// Active handles GET /api/v1/promotions/active
func (h *PromotionHandler) Active(c *fiber.Ctx) error {
	promos, err := h.promos.ListActive(c.UserContext())
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, promos)
}

// Validate handles POST /api/v1/promotions/validate
func (h *PromotionHandler) Validate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req ValidateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}
	if !req.Amount.IsPositive() {
		return response.ValidationError(c, map[string]string{"amount": "must be greater than 0"})
	}

	promo, err := h.promos.Validate(c.UserContext(), req.Code, userID, req.Amount)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	discount := services.CalculateDiscount(promo, req.Amount)
	return response.Success(c, ValidateResponse{
		Code:           promo.Code,
		Name:           promo.Name,
		DiscountType:   promo.DiscountType,
		DiscountValue:  promo.DiscountValue,
		DiscountAmount: discount,
		FinalAmount:    req.Amount.Sub(discount),
	})
}

// List handles GET /api/v1/promotions
func (h *PromotionHandler) List(c *fiber.Ctx) error {
	page := handlers.Page(c)
	promos, total, err := h.promos.List(c.UserContext(), c.Query("status"), page)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, promos, response.CalculatePagination(page.Page, page.Limit, total))
}

// Get handles GET /api/v1/promotions/:id
func (h *PromotionHandler) Get(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	promo, err := h.promos.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, promo)
}

// Create handles POST /api/v1/promotions
func (h *PromotionHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var in services.PromotionInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&in); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	promo, err := h.promos.Create(c.UserContext(), userID, in)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	h.record(c, services.AuditPromotionCreate, promo.ID, in)
	return response.Created(c, "Promotion created", promo)
}

// Update handles PUT /api/v1/promotions/:id
func (h *PromotionHandler) Update(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	var in services.PromotionInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&in); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	promo, err := h.promos.Update(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	h.record(c, services.AuditPromotionUpdate, promo.ID, in)
	return response.SuccessWithMessage(c, "Promotion updated", promo)
}

// Delete handles DELETE /api/v1/promotions/:id
func (h *PromotionHandler) Delete(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	if err := h.promos.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, h.logger, err)
	}
	h.record(c, services.AuditPromotionDelete, id, nil)
	return response.SuccessWithMessage(c, "Promotion deleted", nil)
}

// Stats handles GET /api/v1/promotions/:id/stats
func (h *PromotionHandler) Stats(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	stats, err := h.promos.Stats(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, stats)
}
