package enrollment

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/services"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
)

// EnrollmentHandler handles enrollment and lesson progress endpoints
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
	validator   *validation.Validator
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments *services.EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, validator: validation.NewValidator(), logger: logger}
}

// ProgressRequest reports progress on one lesson
type ProgressRequest struct {
	Completed     bool `json:"completed"`
	WatchPosition int  `json:"watch_position" validate:"gte=0"`
}

// MyEnrollments handles GET /api/v1/enrollments/my-enrollments
func (h *EnrollmentHandler) MyEnrollments(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	list, err := h.enrollments.ListMine(c.UserContext(), viewer.UserID, c.Query("status"))
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, list)
}

// Get handles GET /api/v1/enrollments/:id
func (h *EnrollmentHandler) Get(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	e, err := h.enrollments.Get(c.UserContext(), viewer, id)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, e)
}

// EnrollFree handles POST /api/v1/enrollments/courses/:courseId/enroll
func (h *EnrollmentHandler) EnrollFree(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	courseID, err := handlers.ParamID(c, "courseId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	e, err := h.enrollments.EnrollFree(c.UserContext(), viewer.UserID, courseID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Created(c, "Enrolled successfully", e)
}

// UpdateProgress handles PUT /api/v1/enrollments/:enrollmentId/lessons/:lessonId/progress
func (h *EnrollmentHandler) UpdateProgress(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	enrollmentID, err := handlers.ParamID(c, "enrollmentId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	lessonID, err := handlers.ParamID(c, "lessonId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	var req ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	e, err := h.enrollments.UpdateLessonProgress(c.UserContext(), viewer.UserID, enrollmentID, lessonID,
		services.LessonProgressInput{Completed: req.Completed, WatchPosition: req.WatchPosition})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, e)
}

// CourseProgress handles GET /api/v1/enrollments/courses/:courseId/progress
func (h *EnrollmentHandler) CourseProgress(c *fiber.Ctx) error {
	viewer, ok := handlers.Viewer(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	courseID, err := handlers.ParamID(c, "courseId")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	e, err := h.enrollments.CourseProgress(c.UserContext(), viewer.UserID, courseID)
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, e)
}

// List handles GET /api/v1/enrollments (staff)
func (h *EnrollmentHandler) List(c *fiber.Ctx) error {
	page := handlers.Page(c)
	list, total, err := h.enrollments.List(c.UserContext(), services.EnrollmentFilter{
		CourseID: uint(c.QueryInt("course_id", 0)),
		Status:   c.Query("status"),
		Page:     page,
	})
	if err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, list, response.CalculatePagination(page.Page, page.Limit, total))
}
