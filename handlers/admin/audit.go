package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// ListAuditLogs retrieves admin audit logs with pagination
// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	page := handlers.Page(c)
	logs, total, err := h.audit.List(c.UserContext(), services.AuditFilter{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		ActorID:  uint(c.QueryInt("actor_id", 0)),
		Page:     page,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, logs, response.CalculatePagination(page.Page, page.Limit, total))
}
