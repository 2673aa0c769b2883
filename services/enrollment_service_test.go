package services

import (
	"context"
	"sync"
	"testing"

	"github.com/sahilchouksey/course-commerce-api/model"
	"github.com/sahilchouksey/course-commerce-api/utils/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateProgress(t *testing.T) {
	cases := []struct {
		completed, total int
		want             string
		done             bool
	}{
		{0, 0, "0", false},
		{3, 0, "0", false},
		{0, 4, "0", false},
		{1, 3, "33.33", false},
		{2, 3, "66.67", false},
		{3, 3, "100", true},
		{5, 3, "100", true},
	}
	for _, tc := range cases {
		pct, done := CalculateProgress(tc.completed, tc.total)
		assert.True(t, pct.Equal(dec(tc.want)), "%d/%d: got %s", tc.completed, tc.total, pct)
		assert.Equal(t, tc.done, done, "%d/%d", tc.completed, tc.total)
	}
}

func TestEnrollmentCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	c := f.course(t, "Go", "100000", 2)

	e, err := f.enrollments.Create(ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, e.Status)
	assert.True(t, e.Progress.IsZero())

	_, err = f.enrollments.Create(ctx, u.ID, c.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)

	ok, err := f.enrollments.IsEnrolled(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnrollmentCreate_ConcurrentYieldsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	c := f.course(t, "Go", "100000", 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.enrollments.Create(ctx, u.ID, c.ID, nil); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperr.ErrAlreadyEnrolled)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.EqualValues(t, 1, f.enrollmentCount(t, u.ID))
}

func TestEnrollmentCreate_ReactivatesCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	c := f.course(t, "Go", "100000", 2)

	e, err := f.enrollments.Create(ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	var lessons []model.Lesson
	require.NoError(t, f.db.Where("course_id = ?", c.ID).Find(&lessons).Error)
	_, err = f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, lessons[0].ID, LessonProgressInput{Completed: true})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(e).Update("status", model.EnrollmentCancelled).Error)

	orderID := uint(77)
	again, err := f.enrollments.Create(ctx, u.ID, c.ID, &orderID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID)
	assert.Equal(t, model.EnrollmentActive, again.Status)
	assert.True(t, again.Progress.IsZero())
	require.NotNil(t, again.OrderID)
	assert.Equal(t, orderID, *again.OrderID)

	var progressRows int64
	f.db.Model(&model.LessonProgress{}).Where("enrollment_id = ?", e.ID).Count(&progressRows)
	assert.Zero(t, progressRows)
}

func TestEnrollFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	free := f.course(t, "Intro", "0", 1)
	paid := f.course(t, "Pro", "100000", 1)

	_, err := f.enrollments.EnrollFree(ctx, u.ID, paid.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = f.enrollments.EnrollFree(ctx, u.ID, free.ID)
	require.NoError(t, err)

	var course model.Course
	require.NoError(t, f.db.First(&course, free.ID).Error)
	assert.Equal(t, 1, course.TotalStudents)

	_, err = f.enrollments.EnrollFree(ctx, u.ID, 4040)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUpdateLessonProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	other := f.user(t, "other@example.com", model.RoleUser)
	c := f.course(t, "Go", "100000", 3)
	elsewhere := f.course(t, "Rust", "100000", 1)

	var lessons []model.Lesson
	require.NoError(t, f.db.Where("course_id = ?", c.ID).Order("position").Find(&lessons).Error)
	var foreign model.Lesson
	require.NoError(t, f.db.Where("course_id = ?", elsewhere.ID).First(&foreign).Error)

	e, err := f.enrollments.Create(ctx, u.ID, c.ID, nil)
	require.NoError(t, err)

	_, err = f.enrollments.UpdateLessonProgress(ctx, other.ID, e.ID, lessons[0].ID, LessonProgressInput{Completed: true})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, foreign.ID, LessonProgressInput{Completed: true})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	got, err := f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, lessons[0].ID, LessonProgressInput{Completed: true, WatchPosition: 120})
	require.NoError(t, err)
	assert.True(t, got.Progress.Equal(dec("33.33")))

	// reporting the same lesson twice keeps one row
	got, err = f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, lessons[0].ID, LessonProgressInput{Completed: true, WatchPosition: 300})
	require.NoError(t, err)
	assert.True(t, got.Progress.Equal(dec("33.33")))

	for _, l := range lessons[1:] {
		got, err = f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, l.ID, LessonProgressInput{Completed: true})
		require.NoError(t, err)
	}
	assert.True(t, got.Progress.Equal(dec("100")))
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
	assert.NotNil(t, got.CompletionDate)
	assert.EqualValues(t, 1, f.notificationCount(t, u.ID))

	// completion is sticky
	got, err = f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, lessons[2].ID, LessonProgressInput{Completed: false})
	require.NoError(t, err)
	assert.True(t, got.Progress.Equal(dec("66.67")))
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
}

func TestRecalculateProgress_IgnoresInactiveLessons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	c := f.course(t, "Go", "100000", 2)

	var lessons []model.Lesson
	require.NoError(t, f.db.Where("course_id = ?", c.ID).Order("position").Find(&lessons).Error)
	require.NoError(t, f.db.Model(&lessons[1]).Update("is_active", false).Error)

	e, err := f.enrollments.Create(ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	got, err := f.enrollments.UpdateLessonProgress(ctx, u.ID, e.ID, lessons[0].ID, LessonProgressInput{Completed: true})
	require.NoError(t, err)
	assert.True(t, got.Progress.Equal(dec("100")))
	assert.Equal(t, model.EnrollmentCompleted, got.Status)
}

func TestEnrollmentQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "learner@example.com", model.RoleUser)
	other := f.user(t, "other@example.com", model.RoleUser)
	admin := f.user(t, "admin@example.com", model.RoleAdmin)
	a := f.course(t, "A", "100000", 2)
	b := f.course(t, "B", "100000", 0)

	ea, err := f.enrollments.Create(ctx, u.ID, a.ID, nil)
	require.NoError(t, err)
	_, err = f.enrollments.Create(ctx, u.ID, b.ID, nil)
	require.NoError(t, err)

	mine, err := f.enrollments.ListMine(ctx, u.ID, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = f.enrollments.Get(ctx, Viewer{UserID: other.ID, Role: model.RoleUser}, ea.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	got, err := f.enrollments.Get(ctx, Viewer{UserID: admin.ID, Role: model.RoleAdmin}, ea.ID)
	require.NoError(t, err)
	assert.Len(t, got.Course.Lessons, 2)

	_, err = f.enrollments.CourseProgress(ctx, other.ID, a.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	list, total, err := f.enrollments.List(ctx, EnrollmentFilter{CourseID: a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}
