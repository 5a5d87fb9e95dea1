package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type courseServiceMock struct {
	created   dto.CourseRequest
	query     dto.CourseListQuery
	createErr error
	actor     *models.JWTClaims
}

func (m *courseServiceMock) List(ctx context.Context, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error) {
	m.query = query
	return []models.Course{{ID: "c1", Title: "Iaido"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *courseServiceMock) Get(ctx context.Context, id string) (*models.Course, error) {
	if id != "c1" {
		return nil, appErrors.ErrNotFound
	}
	return &models.Course{ID: id}, nil
}

func (m *courseServiceMock) Create(ctx context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	m.created = req
	m.actor = actor
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Course{ID: "c2", Title: req.Title, Status: models.CourseStatusConfirmed}, nil
}

func (m *courseServiceMock) Update(ctx context.Context, id string, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	return &models.Course{ID: id, Title: req.Title}, nil
}

func (m *courseServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return nil
}

func (m *courseServiceMock) Confirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	return &models.Course{ID: id, Status: models.CourseStatusConfirmed}, nil
}

func (m *courseServiceMock) ApproveFirst(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	return &models.Course{ID: id, Status: models.CourseStatusConfirmed}, nil
}

func (m *courseServiceMock) InstructorConfirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	return &models.Course{ID: id, Status: models.CourseStatusConfirmed, InstructorConfirmed: true}, nil
}

func (m *courseServiceMock) InstructorDecline(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	return &models.Course{ID: id, Status: models.CourseStatusPendingInstructor}, nil
}

const validCourseBody = `{"location_id":"dojo","instructor_id":"sensei","title":"Iaido","capacity":10,"price":12000,"start_date":"2026-04-01","end_date":"2026-04-30"}`

func TestCreateCourse(t *testing.T) {
	mock := &courseServiceMock{}
	h := &CourseHandler{service: mock}
	actor := &models.JWTClaims{UserID: "u1", Role: models.RoleSchool, SchoolID: "school-1"}

	c, w := newJSONContext(http.MethodPost, "/courses", validCourseBody, actor)
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 10, mock.created.Capacity)
	assert.Equal(t, "school-1", mock.actor.SchoolID)

	c, w = newJSONContext(http.MethodPost, "/courses", `{"title":"Iaido","school_id":"school-9"}`, actor)
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w)["code"])
}

func TestCreateCourseReportsCapacityBreakdown(t *testing.T) {
	breakdown := models.CapacityBreakdown{LocationID: "dojo", LocationCapacity: 30, Requested: 10, Total: 35}
	mock := &courseServiceMock{createErr: appErrors.WithDetails(appErrors.ErrCapacityExceeded, "Main Dojo can accommodate 30 students maximum", breakdown)}
	h := &CourseHandler{service: mock}

	c, w := newJSONContext(http.MethodPost, "/courses", validCourseBody, &models.JWTClaims{UserID: "u1", Role: models.RoleSchool, SchoolID: "school-1"})
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 35, details["total"])
	assert.EqualValues(t, 30, details["location_capacity"])
}

func TestListCoursesBindsQuery(t *testing.T) {
	mock := &courseServiceMock{}
	h := &CourseHandler{service: mock}

	c, w := newJSONContext(http.MethodGet, "/courses?style=kendo&page=2", "", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "kendo", mock.query.Style)
	assert.Equal(t, 2, mock.query.Page)

	c, w = newJSONContext(http.MethodGet, "/courses?page=two", "", nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseTransitions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &CourseHandler{service: &courseServiceMock{}}

	c, w := newJSONContext(http.MethodPatch, "/courses/c1/approve-first", "", &models.JWTClaims{UserID: "u1", Role: models.RoleSchool})
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.ApproveFirst(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newJSONContext(http.MethodPatch, "/courses/c1/approve-first", "", &models.JWTClaims{UserID: "root", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.ApproveFirst(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newJSONContext(http.MethodGet, "/courses/missing", "", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
