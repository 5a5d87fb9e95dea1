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

type waitlistManager interface {
	Join(ctx context.Context, courseID string, req dto.JoinWaitlistRequest, actor *models.JWTClaims) (*dto.JoinWaitlistResponse, error)
	Leave(ctx context.Context, waitlistID string, actor *models.JWTClaims) error
	List(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.WaitlistEntry, error)
}

// WaitlistHandler exposes waitlist endpoints.
type WaitlistHandler struct {
	service waitlistManager
}

// NewWaitlistHandler constructs the handler.
func NewWaitlistHandler(svc *service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{service: svc}
}

// Join godoc
// @Summary Join a course waitlist
// @Tags Waitlist
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.JoinWaitlistRequest true "Student details"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/waitlist [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	var req dto.JoinWaitlistRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Join(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List a course waitlist
// @Tags Waitlist
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/waitlist [get]
func (h *WaitlistHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Leave godoc
// @Summary Leave a waitlist
// @Tags Waitlist
// @Param id path string true "Waitlist entry ID"
// @Success 204
// @Security BearerAuth
// @Router /waitlist/{id} [delete]
func (h *WaitlistHandler) Leave(c *gin.Context) {
	if err := h.service.Leave(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
