package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var enrolledStatuses = []string{model.EnrollmentActive, model.EnrollmentCompleted}

// EnrollmentService grants course access and tracks lesson progress
type EnrollmentService struct {
	db       *gorm.DB
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEnrollmentService(db *gorm.DB, notifier Notifier, logger *slog.Logger) *EnrollmentService {
	return &EnrollmentService{db: db, notifier: notifier, logger: logger, now: time.Now}
}

// isEnrolled checks for an active or completed enrollment using tx
func isEnrolled(tx *gorm.DB, userID, courseID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status IN ?", userID, courseID, enrolledStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return count > 0, nil
}

// IsEnrolled reports whether the user has an active or completed enrollment in the course
func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID, courseID uint) (bool, error) {
	return isEnrolled(s.db.WithContext(ctx), userID, courseID)
}

// Create enrolls a user. A cancelled enrollment is reactivated with progress reset;
// an active or completed one yields ErrAlreadyEnrolled. Concurrent calls for the
// same pair produce exactly one row.
func (s *EnrollmentService) Create(ctx context.Context, userID, courseID uint, orderID *uint) (*model.Enrollment, error) {
	db := s.db.WithContext(ctx)
	now := s.now()

	var existing model.Enrollment
	err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Status != model.EnrollmentCancelled {
			return nil, apperr.ErrAlreadyEnrolled
		}
		return s.reactivate(ctx, &existing, orderID, now)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		OrderID:    orderID,
		Status:     model.EnrollmentActive,
		Progress:   decimal.Zero,
		EnrolledAt: now,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(enrollment)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrAlreadyEnrolled
	}
	return enrollment, nil
}

func (s *EnrollmentService) reactivate(ctx context.Context, e *model.Enrollment, orderID *uint, now time.Time) (*model.Enrollment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Enrollment{}).
			Where("id = ? AND status = ?", e.ID, model.EnrollmentCancelled).
			Updates(map[string]interface{}{
				"status":          model.EnrollmentActive,
				"progress":        decimal.Zero,
				"completion_date": nil,
				"enrolled_at":     now,
				"order_id":        orderID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reactivate enrollment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.ErrAlreadyEnrolled
		}
		if err := tx.Where("enrollment_id = ?", e.ID).Delete(&model.LessonProgress{}).Error; err != nil {
			return fmt.Errorf("failed to reset lesson progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var reloaded model.Enrollment
	if err := s.db.WithContext(ctx).First(&reloaded, e.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload enrollment: %w", err)
	}
	return &reloaded, nil
}

// EnrollFree enrolls directly into a course whose effective price is zero
func (s *EnrollmentService) EnrollFree(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Course not found")
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	if course.Status != model.CourseStatusActive {
		return nil, apperr.NotFoundErr("Course not found")
	}
	if !course.IsFree() {
		return nil, apperr.InvalidErr("Course requires payment", nil)
	}

	enrollment, err := s.Create(ctx, userID, courseID, nil)
	if err != nil {
		return nil, err
	}
	if err := s.RefreshStudentCount(ctx, courseID); err != nil {
		s.logger.WarnContext(ctx, "student count refresh failed",
			slog.Uint64("course_id", uint64(courseID)), slog.Any("error", err))
	}
	return enrollment, nil
}

// RefreshStudentCount recomputes the course's denormalised student count
func (s *EnrollmentService) RefreshStudentCount(ctx context.Context, courseID uint) error {
	var count int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Enrollment{}).
		Where("course_id = ? AND status IN ?", courseID, enrolledStatuses).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count students: %w", err)
	}
	return db.Model(&model.Course{}).Where("id = ?", courseID).
		UpdateColumn("total_students", count).Error
}

// RecalculateProgress recounts completed lessons against the course's active lessons.
// Completion is sticky: once completed, a lower percentage does not revert the status.
func (s *EnrollmentService) RecalculateProgress(ctx context.Context, enrollmentID uint) (*model.Enrollment, bool, error) {
	var (
		enrollment   model.Enrollment
		justFinished bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&enrollment, enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundErr("Enrollment not found")
			}
			return fmt.Errorf("failed to load enrollment: %w", err)
		}

		var total, completed int64
		if err := tx.Model(&model.Lesson{}).
			Where("course_id = ? AND is_active = ?", enrollment.CourseID, true).
			Count(&total).Error; err != nil {
			return fmt.Errorf("failed to count lessons: %w", err)
		}
		if err := tx.Model(&model.LessonProgress{}).
			Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
			Where("lesson_progress.enrollment_id = ? AND lesson_progress.is_completed = ?", enrollment.ID, true).
			Where("lessons.course_id = ? AND lessons.is_active = ? AND lessons.deleted_at IS NULL", enrollment.CourseID, true).
			Count(&completed).Error; err != nil {
			return fmt.Errorf("failed to count completed lessons: %w", err)
		}

		pct, complete := CalculateProgress(int(completed), int(total))
		updates := map[string]interface{}{"progress": pct}
		if complete && enrollment.Status == model.EnrollmentActive {
			now := s.now()
			updates["status"] = model.EnrollmentCompleted
			updates["completion_date"] = &now
			enrollment.Status = model.EnrollmentCompleted
			enrollment.CompletionDate = &now
			justFinished = true
		}
		if err := tx.Model(&enrollment).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		enrollment.Progress = pct
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &enrollment, justFinished, nil
}

// LessonProgressInput is a progress report for one lesson
type LessonProgressInput struct {
	Completed     bool
	WatchPosition int
}

// UpdateLessonProgress records lesson progress for the enrollment's owner and
// recalculates course progress, notifying the user on completion
func (s *EnrollmentService) UpdateLessonProgress(ctx context.Context, userID, enrollmentID, lessonID uint, in LessonProgressInput) (*model.Enrollment, error) {
	db := s.db.WithContext(ctx)

	var enrollment model.Enrollment
	if err := db.First(&enrollment, enrollmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Enrollment not found")
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if enrollment.UserID != userID {
		return nil, apperr.ForbiddenErr("You do not own this enrollment")
	}
	if enrollment.Status == model.EnrollmentCancelled {
		return nil, apperr.ConflictErr("Enrollment is cancelled")
	}

	var lesson model.Lesson
	if err := db.Where("id = ? AND course_id = ?", lessonID, enrollment.CourseID).First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Lesson not found in this course")
		}
		return nil, fmt.Errorf("failed to load lesson: %w", err)
	}

	now := s.now()
	progress := model.LessonProgress{
		EnrollmentID:  enrollment.ID,
		LessonID:      lesson.ID,
		IsCompleted:   in.Completed,
		WatchPosition: in.WatchPosition,
	}
	if in.Completed {
		progress.CompletedAt = &now
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_completed", "watch_position", "completed_at", "updated_at"}),
	}).Create(&progress).Error; err != nil {
		return nil, fmt.Errorf("failed to save lesson progress: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).Where("id = ?", enrollment.ID).
		UpdateColumn("last_accessed_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to touch enrollment: %w", err)
	}

	updated, finished, err := s.RecalculateProgress(ctx, enrollment.ID)
	if err != nil {
		return nil, err
	}
	if finished {
		s.notifyCompletion(ctx, updated)
	}
	return updated, nil
}

func (s *EnrollmentService) notifyCompletion(ctx context.Context, e *model.Enrollment) {
	var course model.Course
	title := "your course"
	if err := s.db.WithContext(ctx).Select("id", "title").First(&course, e.CourseID).Error; err == nil {
		title = course.Title
	}
	err := s.notifier.Notify(ctx, CreateNotificationRequest{
		UserID:   e.UserID,
		Type:     model.NotificationTypeCourse,
		Title:    "Course completed",
		Message:  fmt.Sprintf("Congratulations! You completed %s.", title),
		Link:     fmt.Sprintf("/my-courses/%d", e.CourseID),
		Metadata: &model.NotificationMetadata{CourseID: e.CourseID, EnrollmentID: e.ID},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "completion notification failed",
			slog.Uint64("enrollment_id", uint64(e.ID)), slog.Any("error", err))
	}
}

// ListMine lists the user's enrollments with their course, optionally filtered by status
func (s *EnrollmentService) ListMine(ctx context.Context, userID uint, status string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	q := s.db.WithContext(ctx).Preload("Course").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("enrolled_at DESC").Find(&enrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

// Get returns one enrollment with course and lesson progress, for its owner or staff
func (s *EnrollmentService) Get(ctx context.Context, viewer Viewer, id uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Preload("Course.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("position ASC")
		}).
		Preload("LessonProgress").
		First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("Enrollment not found")
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if e.UserID != viewer.UserID && !viewer.Privileged() {
		return nil, apperr.ForbiddenErr("You do not have access to this enrollment")
	}
	return &e, nil
}

// CourseProgress returns the user's enrollment in a course with lesson progress
func (s *EnrollmentService) CourseProgress(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("LessonProgress").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("You are not enrolled in this course")
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	return &e, nil
}

// EnrollmentFilter narrows the staff enrollment listing
type EnrollmentFilter struct {
	CourseID uint
	Status   string
	Page
}

// List pages through all enrollments for staff
func (s *EnrollmentService) List(ctx context.Context, f EnrollmentFilter) ([]model.Enrollment, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Enrollment{})
	if f.CourseID != 0 {
		q = q.Where("course_id = ?", f.CourseID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	var enrollments []model.Enrollment
	if err := q.Preload("Course").Order("id DESC").
		Limit(f.limit()).Offset(f.offset()).
		Find(&enrollments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, total, nil
}
