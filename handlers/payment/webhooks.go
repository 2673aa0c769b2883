package payment

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/services/payment"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// Gateway IPN response codes
const (
	ipnSuccess          = "00"
	ipnOrderNotFound    = "01"
	ipnInvalidAmount    = "04"
	ipnInvalidSignature = "97"
	ipnUnknownError     = "99"
)

type ipnResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// verify runs the provider's signature check for kind
func (h *PaymentHandler) verify(kind payment.Kind, params payment.CallbackParams) (*payment.Outcome, error) {
	provider, err := h.registry.Get(kind)
	if err != nil {
		return nil, err
	}
	return provider.VerifyCallback(params)
}

// MomoNotify handles POST /api/v1/payments/momo-notify. The wallet retries on
// anything but 200, so every outcome is acknowledged with 200.
func (h *PaymentHandler) MomoNotify(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ack := func(success bool, msg string, code string) error {
		body := response.Response{Success: success, Message: msg}
		if code != "" {
			body.Error = &response.ErrorDetail{Code: code, Message: msg}
		}
		return c.Status(fiber.StatusOK).JSON(body)
	}

	params, err := payment.ParamsFromJSON(c.Body())
	if err != nil {
		h.logger.WarnContext(ctx, "wallet callback unreadable", slog.Any("error", err))
		return ack(false, "Malformed callback", response.ErrorCode(err))
	}

	outcome, err := h.verify(payment.KindWallet, params)
	if err != nil {
		h.logger.WarnContext(ctx, "wallet callback rejected",
			slog.String("order_code", params["orderId"]), slog.Any("error", err))
		return ack(false, apperr.PublicMessage(err, false), response.ErrorCode(err))
	}

	result, err := h.reconciler.Reconcile(ctx, outcome)
	if err != nil {
		h.logger.ErrorContext(ctx, "wallet callback reconcile failed",
			slog.String("order_code", outcome.OrderCode), slog.Any("error", err))
		return ack(false, apperr.PublicMessage(err, false), response.ErrorCode(err))
	}
	return ack(true, reconcileMessage(result), "")
}

func reconcileMessage(r *services.ReconcileResult) string {
	switch r.Status {
	case services.AlreadyReconciled:
		return "Payment already processed"
	case services.ReconcileFailed:
		return "Payment failure recorded"
	}
	return "Payment processed"
}

// VnpayReturn handles GET /api/v1/payments/vnpay-return, the browser redirect back
// from the gateway. The buyer is sent on to the frontend result page.
func (h *PaymentHandler) VnpayReturn(c *fiber.Ctx) error {
	ctx := c.UserContext()
	outcome, err := h.verify(payment.KindGateway, payment.CallbackParams(c.Queries()))
	if err != nil {
		h.logger.WarnContext(ctx, "gateway return rejected", slog.Any("error", err))
		if errors.Is(err, apperr.ErrInvalidSignature) {
			return h.redirectFailed(c, ipnInvalidSignature, "Invalid signature")
		}
		return h.redirectFailed(c, ipnUnknownError, apperr.PublicMessage(err, false))
	}

	if _, err := h.reconciler.Reconcile(ctx, outcome); err != nil {
		h.logger.ErrorContext(ctx, "gateway return reconcile failed",
			slog.String("order_code", outcome.OrderCode), slog.Any("error", err))
		return h.redirectFailed(c, ipnCode(err), apperr.PublicMessage(err, false))
	}

	if !outcome.Success {
		return h.redirectFailed(c, outcome.ResponseCode, outcome.Message)
	}

	q := url.Values{}
	q.Set("orderId", outcome.OrderCode)
	q.Set("amount", outcome.Amount.String())
	q.Set("transactionNo", outcome.TransactionID)
	return c.Redirect(h.frontendURL+"/payment/success?"+q.Encode(), fiber.StatusFound)
}

func (h *PaymentHandler) redirectFailed(c *fiber.Ctx, code, message string) error {
	q := url.Values{}
	q.Set("code", code)
	q.Set("message", message)
	return c.Redirect(h.frontendURL+"/payment/failed?"+q.Encode(), fiber.StatusFound)
}

// VnpayIPN handles GET /api/v1/payments/vnpay-ipn, the gateway's server-to-server notify
func (h *PaymentHandler) VnpayIPN(c *fiber.Ctx) error {
	ctx := c.UserContext()
	reply := func(code, msg string) error {
		return c.Status(fiber.StatusOK).JSON(ipnResponse{RspCode: code, Message: msg})
	}

	outcome, err := h.verify(payment.KindGateway, payment.CallbackParams(c.Queries()))
	if err != nil {
		h.logger.WarnContext(ctx, "gateway notify rejected", slog.Any("error", err))
		if errors.Is(err, apperr.ErrInvalidSignature) {
			return reply(ipnInvalidSignature, "Invalid signature")
		}
		return reply(ipnUnknownError, "Unknown error")
	}

	result, err := h.reconciler.Reconcile(ctx, outcome)
	if err != nil {
		code := ipnCode(err)
		h.logger.WarnContext(ctx, "gateway notify not applied",
			slog.String("order_code", outcome.OrderCode), slog.String("rsp_code", code), slog.Any("error", err))
		switch code {
		case ipnOrderNotFound:
			return reply(code, "Order not found")
		case ipnInvalidAmount:
			return reply(code, "Invalid amount")
		}
		return reply(ipnUnknownError, "Unknown error")
	}

	if result.Status == services.AlreadyReconciled {
		return reply(ipnSuccess, "Order already confirmed")
	}
	return reply(ipnSuccess, "Confirm success")
}

// ipnCode maps a reconcile error to the gateway's response code
func ipnCode(err error) string {
	switch {
	case errors.Is(err, apperr.ErrAmountMismatch):
		return ipnInvalidAmount
	case apperr.KindOf(err) == apperr.NotFound:
		return ipnOrderNotFound
	case errors.Is(err, apperr.ErrInvalidSignature):
		return ipnInvalidSignature
	}
	return ipnUnknownError
}
