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

type bookingManager interface {
	BookSessions(ctx context.Context, req dto.BookSessionsRequest, actor *models.JWTClaims) (*models.SessionBookingResult, error)
	CreateCourseBooking(ctx context.Context, courseID string, req dto.CourseBookingRequest, actor *models.JWTClaims) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Booking, error)
	ListBySchool(ctx context.Context, schoolID string, actor *models.JWTClaims) ([]models.Booking, error)
}

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	service bookingManager
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// BookSessions godoc
// @Summary Book seats in one or more sessions
// @Description All sessions must belong to one course. Either every seat is taken or none is.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BookSessionsRequest true "Session booking"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/sessions [post]
func (h *BookingHandler) BookSessions(c *gin.Context) {
	var req dto.BookSessionsRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.BookSessions(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// BookCourse godoc
// @Summary Book a whole course
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseBookingRequest true "Student details"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/bookings [post]
func (h *BookingHandler) BookCourse(c *gin.Context) {
	var req dto.CourseBookingRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	booking, err := h.service.CreateCourseBooking(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Cancel godoc
// @Summary Cancel a booking
// @Description Releases the held seats and offers one to the next waitlisted student.
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/cancel [patch]
func (h *BookingHandler) Cancel(c *gin.Context) {
	booking, err := h.service.CancelBooking(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/confirm [patch]
func (h *BookingHandler) Confirm(c *gin.Context) {
	booking, err := h.service.ConfirmBooking(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// ListMine godoc
// @Summary List the caller's bookings
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	bookings, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// ListBySchool godoc
// @Summary List bookings for a school's courses
// @Tags Bookings
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schools/{id}/bookings [get]
func (h *BookingHandler) ListBySchool(c *gin.Context) {
	bookings, err := h.service.ListBySchool(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}
