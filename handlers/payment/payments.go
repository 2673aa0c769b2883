package payment

import (
	"io"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/utils/billvalidation"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// PaymentHandler handles payment creation, provider callbacks and staff verification
type PaymentHandler struct {
	payments    *services.PaymentService
	reconciler  *services.ReconciliationService
	audit       *services.AuditService
	registry    *payment.Registry
	frontendURL string
	validator   *validation.Validator
	logger      *slog.Logger
}

func NewPaymentHandler(payments *services.PaymentService, reconciler *services.ReconciliationService,
	audit *services.AuditService, registry *payment.Registry, frontendURL string, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:    payments,
		reconciler:  reconciler,
		audit:       audit,
		registry:    registry,
		frontendURL: frontendURL,
		validator:   validation.NewValidator(),
		logger:      logger,
	}
}

// CreatePaymentRequest starts paying an order with the chosen method
type CreatePaymentRequest struct {
	OrderID       uint   `json:"order_id" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=momo vnpay manual_transfer"`
}

// ManualTransferRequest holds the form fields sent with the bill image
type ManualTransferRequest struct {
	OrderID       uint   `form:"order_id" validate:"required,gt=0"`
	TransferPhone string `form:"transfer_phone" validate:"required,min=8,max=20"`
	TransferName  string `form:"transfer_name" validate:"required,max=100"`
}

// VerifyTransferRequest is a staff decision on a manual transfer
type VerifyTransferRequest struct {
	PaymentID uint  `json:"payment_id" validate:"required,gt=0"`
	Approved  *bool `json:"approved" validate:"required"`
}

// CreatePaymentURL handles POST /api/v1/payments/create-url
func (h *PaymentHandler) CreatePaymentURL(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	kind, err := payment.ParseKind(req.PaymentMethod)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	instr, err := h.payments.CreatePayment(c.UserContext(), viewer.UserID, req.OrderID, kind, c.IP())
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, instr)
}

// SubmitManualTransfer handles POST /api/v1/payments/manual-transfer (multipart)
func (h *PaymentHandler) SubmitManualTransfer(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req ManualTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid form data")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	file, err := c.FormFile("bill_image")
	if err != nil {
		return response.ValidationError(c, map[string]string{"bill_image": "bill image is required"})
	}
	maxBytes := int64(billvalidation.DefaultLimits.MaxFileSizeMB) << 20
	if file.Size > maxBytes {
		return response.ValidationError(c, map[string]string{"bill_image": "file exceeds the size limit"})
	}

	f, err := file.Open()
	if err != nil {
		return response.BadRequest(c, "Unable to read bill image")
	}
	defer f.Close()
	bill, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return response.BadRequest(c, "Unable to read bill image")
	}

	p, err := h.payments.SubmitManualTransfer(c.UserContext(), viewer.UserID, services.ManualTransferInput{
		OrderID:       req.OrderID,
		TransferPhone: req.TransferPhone,
		TransferName:  req.TransferName,
		Bill:          bill,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Transfer submitted, awaiting verification", p)
}

// VerifyTransfer handles POST /api/v1/payments/verify-transfer
func (h *PaymentHandler) VerifyTransfer(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req VerifyTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	result, err := h.reconciler.VerifyTransfer(c.UserContext(), viewer.UserID, req.PaymentID, *req.Approved)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	msg, action := "Transfer approved", services.AuditTransferApprove
	if !*req.Approved {
		msg, action = "Transfer rejected", services.AuditTransferReject
	}
	h.audit.Record(c.UserContext(), services.AuditEntry{
		ActorID:    viewer.UserID,
		Action:     action,
		Resource:   "payments",
		ResourceID: req.PaymentID,
		Details:    result,
		IPAddress:  c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	})
	return response.SuccessWithMessage(c, msg, result)
}

// OrderPayment handles GET /api/v1/payments/orders/:orderId
func (h *PaymentHandler) OrderPayment(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	orderID, err := handlers.ParamID(c, "orderId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	p, err := h.payments.LatestForOrder(c.UserContext(), viewer, orderID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, p)
}

// History handles GET /api/v1/payments/history
func (h *PaymentHandler) History(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	page := handlers.Page(c)
	list, total, err := h.payments.History(c.UserContext(), viewer.UserID, page)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, list, response.CalculatePagination(page.Page, page.Limit, total))
}

// List handles GET /api/v1/payments (staff)
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	page := handlers.Page(c)
	list, total, err := h.payments.List(c.UserContext(), services.PaymentFilter{
		Status: c.Query("status"),
		Method: c.Query("method"),
		Page:   page,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, list, response.CalculatePagination(page.Page, page.Limit, total))
}

// PendingTransfers handles GET /api/v1/payments/pending-transfers (staff)
func (h *PaymentHandler) PendingTransfers(c *fiber.Ctx) error {
	list, err := h.payments.PendingManualTransfers(c.UserContext())
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, list)
}
