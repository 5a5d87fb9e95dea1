package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/service"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
	"github.com/traininjapan/booking-api/pkg/response"
)

type courseManager interface {
	List(ctx context.Context, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error)
	Update(ctx context.Context, id string, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Confirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error)
	ApproveFirst(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error)
	InstructorConfirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error)
	InstructorDecline(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error)
}

// CourseHandler exposes course endpoints.
type CourseHandler struct {
	service courseManager
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List bookable courses
// @Tags Courses
// @Produce json
// @Param school_id query string false "School ID"
// @Param location_id query string false "Location ID"
// @Param instructor_id query string false "Instructor ID"
// @Param style query string false "Martial art style"
// @Param experience_level query string false "Experience level"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	courses, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Description A school's first course starts in pending_first_approval. Capacity is checked against every overlapping course at the location.
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CourseRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req dto.CourseRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Security BearerAuth
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Confirm godoc
// @Summary Confirm course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/confirm [patch]
func (h *CourseHandler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// ApproveFirst godoc
// @Summary Approve a school's first course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/approve-first [patch]
func (h *CourseHandler) ApproveFirst(c *gin.Context) {
	h.transition(c, h.service.ApproveFirst)
}

// InstructorConfirm godoc
// @Summary Instructor accepts a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/instructor-confirm [patch]
func (h *CourseHandler) InstructorConfirm(c *gin.Context) {
	h.transition(c, h.service.InstructorConfirm)
}

// InstructorDecline godoc
// @Summary Instructor declines a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/instructor-decline [patch]
func (h *CourseHandler) InstructorDecline(c *gin.Context) {
	h.transition(c, h.service.InstructorDecline)
}

func (h *CourseHandler) transition(c *gin.Context, fn func(context.Context, string, *models.JWTClaims) (*models.Course, error)) {
	course, err := fn(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
