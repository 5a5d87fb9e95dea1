package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/service"
	"github.com/traininjapan/booking-api/pkg/response"
)

type instructorManager interface {
	List(ctx context.Context, schoolID string) ([]models.Instructor, error)
	Get(ctx context.Context, id string) (*models.Instructor, error)
	Create(ctx context.Context, req dto.InstructorRequest, actor *models.JWTClaims) (*models.Instructor, error)
	Update(ctx context.Context, id string, req dto.InstructorRequest, actor *models.JWTClaims) (*models.Instructor, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

type availabilityManager interface {
	Create(ctx context.Context, instructorID string, req dto.AvailabilityRequest, actor *models.JWTClaims) (*models.InstructorAvailability, error)
	List(ctx context.Context, instructorID string) ([]models.InstructorAvailability, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// InstructorHandler exposes instructor and weekly availability endpoints.
type InstructorHandler struct {
	instructors  instructorManager
	availability availabilityManager
}

// NewInstructorHandler constructs the handler.
func NewInstructorHandler(instructors *service.InstructorService, availability *service.AvailabilityService) *InstructorHandler {
	return &InstructorHandler{instructors: instructors, availability: availability}
}

// List godoc
// @Summary List instructors
// @Tags Instructors
// @Produce json
// @Param school_id query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /instructors [get]
func (h *InstructorHandler) List(c *gin.Context) {
	instructors, err := h.instructors.List(c.Request.Context(), c.Query("school_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructors, nil)
}

// Get godoc
// @Summary Get instructor
// @Tags Instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id} [get]
func (h *InstructorHandler) Get(c *gin.Context) {
	instructor, err := h.instructors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Create godoc
// @Summary Create instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param payload body dto.InstructorRequest true "Instructor payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /instructors [post]
func (h *InstructorHandler) Create(c *gin.Context) {
	var req dto.InstructorRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	instructor, err := h.instructors.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instructor)
}

// Update godoc
// @Summary Update instructor
// @Tags Instructors
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Param payload body dto.InstructorRequest true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instructors/{id} [put]
func (h *InstructorHandler) Update(c *gin.Context) {
	var req dto.InstructorRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	instructor, err := h.instructors.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instructor, nil)
}

// Delete godoc
// @Summary Delete instructor
// @Tags Instructors
// @Param id path string true "Instructor ID"
// @Success 204
// @Security BearerAuth
// @Router /instructors/{id} [delete]
func (h *InstructorHandler) Delete(c *gin.Context) {
	if err := h.instructors.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddAvailability godoc
// @Summary Add a weekly availability block
// @Tags Instructors
// @Accept json
// @Produce json
// @Param id path string true "Instructor ID"
// @Param payload body dto.AvailabilityRequest true "Availability block"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /instructors/{id}/availability [post]
func (h *InstructorHandler) AddAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	block, err := h.availability.Create(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// ListAvailability godoc
// @Summary List weekly availability
// @Tags Instructors
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/availability [get]
func (h *InstructorHandler) ListAvailability(c *gin.Context) {
	blocks, err := h.availability.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// DeleteAvailability godoc
// @Summary Delete an availability block
// @Tags Instructors
// @Param id path string true "Availability ID"
// @Success 204
// @Security BearerAuth
// @Router /availability/{id} [delete]
func (h *InstructorHandler) DeleteAvailability(c *gin.Context) {
	if err := h.availability.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
