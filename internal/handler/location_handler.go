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

type locationManager interface {
	List(ctx context.Context, schoolID string) ([]models.Location, error)
	Get(ctx context.Context, id string) (*models.Location, error)
	Create(ctx context.Context, req dto.LocationRequest, actor *models.JWTClaims) (*models.Location, error)
	Update(ctx context.Context, id string, req dto.LocationRequest, actor *models.JWTClaims) (*models.Location, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// LocationHandler exposes location endpoints.
type LocationHandler struct {
	service locationManager
}

// NewLocationHandler constructs the handler.
func NewLocationHandler(svc *service.LocationService) *LocationHandler {
	return &LocationHandler{service: svc}
}

// List godoc
// @Summary List locations
// @Tags Locations
// @Produce json
// @Param school_id query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /locations [get]
func (h *LocationHandler) List(c *gin.Context) {
	locations, err := h.service.List(c.Request.Context(), c.Query("school_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}

// Get godoc
// @Summary Get location
// @Tags Locations
// @Produce json
// @Param id path string true "Location ID"
// @Success 200 {object} response.Envelope
// @Router /locations/{id} [get]
func (h *LocationHandler) Get(c *gin.Context) {
	location, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, location, nil)
}

// Create godoc
// @Summary Create location
// @Tags Locations
// @Accept json
// @Produce json
// @Param payload body dto.LocationRequest true "Location payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /locations [post]
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.LocationRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	location, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, location)
}

// Update godoc
// @Summary Update location
// @Tags Locations
// @Accept json
// @Produce json
// @Param id path string true "Location ID"
// @Param payload body dto.LocationRequest true "Location payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /locations/{id} [put]
func (h *LocationHandler) Update(c *gin.Context) {
	var req dto.LocationRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	location, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, location, nil)
}

// Delete godoc
// @Summary Delete location
// @Tags Locations
// @Param id path string true "Location ID"
// @Success 204
// @Security BearerAuth
// @Router /locations/{id} [delete]
func (h *LocationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
