package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
)

// ListJobLogs handles GET /api/v1/admin/jobs/logs?job=
func (h *AdminHandler) ListJobLogs(c *fiber.Ctx) error {
	page := handlers.Page(c)
	p, limit := response.NormalizePage(page.Page, page.Limit)

	q := h.db.WithContext(c.UserContext()).Model(&model.CronJobLog{})
	if job := c.Query("job"); job != "" {
		q = q.Where("job_name = ?", job)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	var logs []model.CronJobLog
	if err := q.Order("started_at DESC, id DESC").Limit(limit).Offset((p - 1) * limit).Find(&logs).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, logs, response.CalculatePagination(p, limit, total))
}

// RunJob handles POST /api/v1/admin/jobs/:name/run
func (h *AdminHandler) RunJob(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	if h.jobs == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "Scheduler is disabled", "SERVICE_UNAVAILABLE")
	}

	name := c.Params("name")
	if err := h.jobs.RunNow(c.UserContext(), name); err != nil {
		return response.FromError(c, h.logger, err)
	}

	e := entry(c, viewer.UserID, services.AuditJobRun, "jobs", 0)
	e.Description = name
	h.audit.Record(c.UserContext(), e)

	return response.SuccessWithMessage(c, "Job completed", fiber.Map{"job": name})
}
