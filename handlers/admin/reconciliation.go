package admin

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// RepairAll handles POST /api/v1/admin/reconciliation/repair?limit=
func (h *AdminHandler) RepairAll(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	summary, err := h.reconciler.RepairPaidOrders(c.UserContext(), limit)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	e := entry(c, viewer.UserID, services.AuditRepairSweep, "orders", 0)
	e.Description = fmt.Sprintf("Repaired %d orders, %d enrollments created", summary.Orders, summary.Enrolled)
	e.Details = summary
	h.audit.Record(c.UserContext(), e)

	return response.Success(c, summary)
}

// RepairOrder handles POST /api/v1/admin/reconciliation/orders/:id/repair
func (h *AdminHandler) RepairOrder(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	result, err := h.reconciler.RepairOrder(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	e := entry(c, viewer.UserID, services.AuditOrderRepair, "orders", id)
	e.Details = result
	h.audit.Record(c.UserContext(), e)

	return response.Success(c, result)
}

// SyncWallet handles POST /api/v1/admin/reconciliation/wallet-sync. It asks the wallet
// about every pending attempt regardless of age.
func (h *AdminHandler) SyncWallet(c *fiber.Ctx) error {
	summary, err := h.reconciler.SyncPendingWalletPayments(c.UserContext(), 0)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, summary)
}
