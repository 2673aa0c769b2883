package course

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-commerce-api/handlers"
	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/response"
	"github.com/sahilchouksey/course-commerce-api/utils/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CourseHandler serves the course catalogue and its admin maintenance
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
		logger:    logger,
	}
}

// LessonRequest is one lesson of a course being created
type LessonRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Duration int    `json:"duration" validate:"gte=0"`
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Title         string              `json:"title" validate:"required,min=3,max=255"`
	Slug          string              `json:"slug" validate:"required,min=3,max=255"`
	Description   string              `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL  string              `json:"thumbnail_url" validate:"omitempty,url"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	Status        string              `json:"status" validate:"omitempty,oneof=draft active archived"`
	Lessons       []LessonRequest     `json:"lessons" validate:"dive"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Title         string               `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string              `json:"description" validate:"omitempty,max=5000"`
	ThumbnailURL  *string              `json:"thumbnail_url" validate:"omitempty,url"`
	Price         *decimal.Decimal     `json:"price"`
	DiscountPrice *decimal.NullDecimal `json:"discount_price"`
	Status        string               `json:"status" validate:"omitempty,oneof=draft active archived"`
}

func checkPrices(price decimal.Decimal, discount decimal.NullDecimal) map[string]string {
	fields := map[string]string{}
	if price.IsNegative() {
		fields["price"] = "must not be negative"
	}
	if discount.Valid && (discount.Decimal.IsNegative() || discount.Decimal.GreaterThan(price)) {
		fields["discount_price"] = "must be between 0 and price"
	}
	return fields
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page := handlers.Page(c)
	p, limit := response.NormalizePage(page.Page, page.Limit)

	query := h.db.WithContext(c.UserContext()).Model(&model.Course{}).Where("status = ?", model.CourseStatusActive)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}

	var courses []model.Course
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset((p - 1) * limit).Find(&courses).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Paginated(c, courses, response.CalculatePagination(p, limit, total))
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	var course model.Course
	err = h.db.WithContext(c.UserContext()).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("position ASC")
		}).
		Where("status = ?", model.CourseStatusActive).
		First(&course, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.FromError(c, h.logger, err)
	}
	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}
	if fields := checkPrices(req.Price, req.DiscountPrice); len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	course := model.Course{
		Title:         req.Title,
		Slug:          strings.ToLower(req.Slug),
		Description:   req.Description,
		ThumbnailURL:  req.ThumbnailURL,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Status:        req.Status,
	}
	if course.Status == "" {
		course.Status = model.CourseStatusDraft
	}
	for i, l := range req.Lessons {
		course.Lessons = append(course.Lessons, model.Lesson{Title: l.Title, Duration: l.Duration, Position: i + 1, IsActive: true})
	}

	db := h.db.WithContext(c.UserContext())
	var count int64
	if err := db.Unscoped().Model(&model.Course{}).Where("slug = ?", course.Slug).Count(&count).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	if count > 0 {
		return response.Error(c, fiber.StatusConflict, "Slug is already in use", "CONFLICT")
	}

	if err := db.Create(&course).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.Created(c, "Course created", course)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id, err := handlers.ParamID(c, "id")
	if err != nil {
		return response.FromError(c, h.logger, err)
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	db := h.db.WithContext(c.UserContext())
	var course model.Course
	if err := db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.FromError(c, h.logger, err)
	}

	price, discount := course.Price, course.DiscountPrice
	if req.Price != nil {
		price = *req.Price
	}
	if req.DiscountPrice != nil {
		discount = *req.DiscountPrice
	}
	if fields := checkPrices(price, discount); len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	updates := map[string]interface{}{"price": price, "discount_price": discount}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ThumbnailURL != nil {
		updates["thumbnail_url"] = *req.ThumbnailURL
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}

	// prices already on pending orders are fixed at checkout
	if err := db.Model(&course).Updates(updates).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	if err := db.First(&course, id).Error; err != nil {
		return response.FromError(c, h.logger, err)
	}
	return response.SuccessWithMessage(c, "Course updated", course)
}
