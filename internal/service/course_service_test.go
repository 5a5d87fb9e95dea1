package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type courseFixture struct {
	svc         *CourseService
	courses     *fakeCourseRepo
	locations   *fakeLocationRepo
	instructors *fakeInstructorRepo
	tx          *txProviderMock
}

func newCourseFixture(t *testing.T, courses ...models.Course) *courseFixture {
	txp, _ := newTxProviderMock(t)
	f := &courseFixture{
		courses: newFakeCourseRepo(courses...),
		locations: newFakeLocationRepo(
			models.Location{ID: "dojo", SchoolID: "school-1", Name: "Main Dojo", Capacity: 30},
			models.Location{ID: "annex", SchoolID: "school-2", Name: "Annex", Capacity: 20},
		),
		instructors: newFakeInstructorRepo(
			models.Instructor{ID: "sensei", SchoolID: "school-1", Name: "Tanaka", Email: "Tanaka@Dojo.jp"},
			models.Instructor{ID: "guest", SchoolID: "school-2", Name: "Sato", Email: "sato@annex.jp"},
		),
		tx: txp.(*txProviderMock),
	}
	capacity := NewCapacityValidator(f.courses, f.locations)
	f.svc = NewCourseService(f.courses, f.locations, f.instructors, capacity, f.tx, NewMetricsService(), nil, zap.NewNop())
	f.svc.lock = noLock
	return f
}

func courseRequest(title string, capacity int, start, end string) dto.CourseRequest {
	return dto.CourseRequest{
		LocationID:   "dojo",
		InstructorID: "sensei",
		Title:        title,
		Capacity:     capacity,
		Price:        12000,
		StartDate:    start,
		EndDate:      end,
	}
}

func TestCourseCreateFirstCourseAwaitsApproval(t *testing.T) {
	f := newCourseFixture(t)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectCommit()
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectCommit()

	first, err := f.svc.Create(context.Background(), courseRequest("Iaido", 10, "2026-04-01", "2026-04-30"), schoolActor("school-1"))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusPendingFirstApproval, first.Status)
	assert.Equal(t, "school-1", first.SchoolID)
	assert.Equal(t, "JPY", first.Currency)

	second, err := f.svc.Create(context.Background(), courseRequest("Jodo", 5, "2026-05-01", "2026-05-31"), schoolActor("school-1"))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, second.Status)
	require.NoError(t, f.tx.mock.ExpectationsWereMet())
}

func TestCourseCreateRejectsOverlappingCapacity(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "a", SchoolID: "school-1", LocationID: "dojo", Title: "Course A", Capacity: 15, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusConfirmed},
		models.Course{ID: "b", SchoolID: "school-1", LocationID: "dojo", Title: "Course B", Capacity: 10, StartDate: "2026-03-15", EndDate: "2026-04-15", Status: models.CourseStatusActive},
		models.Course{ID: "gone", SchoolID: "school-1", LocationID: "dojo", Title: "Cancelled", Capacity: 30, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusCancelled},
	)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), courseRequest("Course C", 10, "2026-03-20", "2026-03-25"), schoolActor("school-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	assert.Contains(t, err.Error(), "Main Dojo can accommodate 30 students maximum")
	assert.Contains(t, err.Error(), "Total with your course: 35 students")

	appErr := appErrors.FromError(err)
	breakdown, ok := appErr.Details.(models.CapacityBreakdown)
	require.True(t, ok)
	assert.Equal(t, 35, breakdown.Total)
	require.Len(t, breakdown.Overlapping, 2)
	assert.Equal(t, "a", breakdown.Overlapping[0].CourseID)
	assert.Len(t, f.courses.created, 0)
	require.NoError(t, f.tx.mock.ExpectationsWereMet())
}

func TestCourseCreateAllowsNonOverlappingDates(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "a", SchoolID: "school-1", LocationID: "dojo", Capacity: 25, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusConfirmed},
	)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectCommit()

	course, err := f.svc.Create(context.Background(), courseRequest("April", 25, "2026-04-01", "2026-04-30"), schoolActor("school-1"))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, course.Status)
}

func TestCourseCreateCountsSameDayBoundaryAsOverlap(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "a", SchoolID: "school-1", LocationID: "dojo", Title: "March Intensive", Capacity: 20, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusConfirmed},
	)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), courseRequest("Spring Camp", 15, "2026-03-31", "2026-04-10"), schoolActor("school-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))

	breakdown, ok := appErrors.FromError(err).Details.(models.CapacityBreakdown)
	require.True(t, ok)
	assert.Equal(t, 35, breakdown.Total)
	require.Len(t, breakdown.Overlapping, 1)
	assert.Equal(t, "a", breakdown.Overlapping[0].CourseID)
	assert.Len(t, f.courses.created, 0)
	require.NoError(t, f.tx.mock.ExpectationsWereMet())
}

func TestCourseCreateRejectsCapacityAboveLocation(t *testing.T) {
	f := newCourseFixture(t)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()

	_, err := f.svc.Create(context.Background(), courseRequest("Huge", 31, "2026-04-01", "2026-04-30"), schoolActor("school-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "cannot exceed location capacity (30)")
}

func TestCourseCreateRejectsForeignResources(t *testing.T) {
	f := newCourseFixture(t)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()

	req := courseRequest("Borrowed", 5, "2026-04-01", "2026-04-30")
	req.LocationID = "annex"
	_, err := f.svc.Create(context.Background(), req, schoolActor("school-1"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	req = courseRequest("Borrowed", 5, "2026-04-01", "2026-04-30")
	req.InstructorID = "guest"
	_, err = f.svc.Create(context.Background(), req, schoolActor("school-1"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Create(context.Background(), req, studentActor("s1"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCourseCreateByAdminInheritsLocationSchool(t *testing.T) {
	f := newCourseFixture(t)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectCommit()

	course, err := f.svc.Create(context.Background(), courseRequest("Seminar", 5, "2026-04-01", "2026-04-02"), adminActor())
	require.NoError(t, err)
	assert.Equal(t, "school-1", course.SchoolID)
}

func TestCourseCreateValidatesDates(t *testing.T) {
	f := newCourseFixture(t)
	_, err := f.svc.Create(context.Background(), courseRequest("Backwards", 5, "2026-04-30", "2026-04-01"), schoolActor("school-1"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req := courseRequest("Late", 5, "2026-04-01", "2026-04-30")
	req.DailyStartTime = "21:00"
	req.DailyEndTime = "20:00"
	_, err = f.svc.Create(context.Background(), req, schoolActor("school-1"))
	assert.Error(t, err)
}

func TestCourseUpdateExcludesItselfFromCapacity(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "a", SchoolID: "school-1", LocationID: "dojo", InstructorID: "sensei", Title: "A", Capacity: 20, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusConfirmed},
		models.Course{ID: "b", SchoolID: "school-1", LocationID: "dojo", InstructorID: "sensei", Title: "B", Capacity: 10, StartDate: "2026-03-01", EndDate: "2026-03-31", Status: models.CourseStatusConfirmed},
	)
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectCommit()
	f.tx.mock.ExpectBegin()
	f.tx.mock.ExpectRollback()

	updated, err := f.svc.Update(context.Background(), "a", courseRequest("A", 20, "2026-03-01", "2026-03-31"), schoolActor("school-1"))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, updated.Status)

	_, err = f.svc.Update(context.Background(), "a", courseRequest("A", 21, "2026-03-01", "2026-03-31"), schoolActor("school-1"))
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	require.NoError(t, f.tx.mock.ExpectationsWereMet())
}

func TestCourseApproveFirst(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "new", SchoolID: "school-1", Status: models.CourseStatusPendingFirstApproval},
		models.Course{ID: "live", SchoolID: "school-1", Status: models.CourseStatusConfirmed},
	)

	_, err := f.svc.ApproveFirst(context.Background(), "new", schoolActor("school-1"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ApproveFirst(context.Background(), "live", adminActor())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	course, err := f.svc.ApproveFirst(context.Background(), "new", adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, course.Status)
	assert.True(t, course.InstructorConfirmed)
	assert.Equal(t, models.CourseStatusConfirmed, f.courses.status["new"])
}

func TestCourseInstructorConfirmAndDecline(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "c", SchoolID: "school-1", InstructorID: "sensei", Status: models.CourseStatusPendingInstructor},
	)
	instructor := &models.JWTClaims{UserID: "u-9", Role: models.RoleStudent, Email: "tanaka@dojo.jp"}
	stranger := &models.JWTClaims{UserID: "u-8", Role: models.RoleSchool, SchoolID: "school-1", Email: "other@dojo.jp"}

	_, err := f.svc.InstructorConfirm(context.Background(), "c", stranger)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	course, err := f.svc.InstructorConfirm(context.Background(), "c", instructor)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, course.Status)
	assert.True(t, course.InstructorConfirmed)

	course, err = f.svc.InstructorDecline(context.Background(), "c", adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusPendingInstructor, course.Status)
	assert.False(t, course.InstructorConfirmed)
}

func TestCourseConfirmAndDeleteRequireOwner(t *testing.T) {
	f := newCourseFixture(t, models.Course{ID: "c", SchoolID: "school-1", Status: models.CourseStatusPending})

	_, err := f.svc.Confirm(context.Background(), "c", schoolActor("school-2"))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	course, err := f.svc.Confirm(context.Background(), "c", schoolActor("school-1"))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusConfirmed, course.Status)

	assert.True(t, errors.Is(f.svc.Delete(context.Background(), "c", schoolActor("school-2")), appErrors.ErrForbidden))
	require.NoError(t, f.svc.Delete(context.Background(), "c", adminActor()))
	assert.Equal(t, []string{"c"}, f.courses.deleted)
	assert.True(t, errors.Is(f.svc.Delete(context.Background(), "c", adminActor()), appErrors.ErrNotFound))
}

func TestCourseListClampsPaging(t *testing.T) {
	f := newCourseFixture(t,
		models.Course{ID: "a", SchoolID: "school-1", Status: models.CourseStatusConfirmed},
		models.Course{ID: "b", SchoolID: "school-1", Status: models.CourseStatusPendingFirstApproval},
	)
	courses, page, err := f.svc.List(context.Background(), dto.CourseListQuery{PageSize: 1000})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, maxCoursePageSize, page.PageSize)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalCount)
}
