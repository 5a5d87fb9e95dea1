package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/middleware"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/service"
	"github.com/traininjapan/booking-api/pkg/export"
	"github.com/traininjapan/booking-api/pkg/response"
)

type sessionManager interface {
	GenerateSessions(ctx context.Context, courseID string, req dto.ScheduleRequest, actor *models.JWTClaims) (*models.GeneratedSchedule, error)
	ListSchedules(ctx context.Context, courseID string) ([]models.CourseSchedule, error)
	ListSessions(ctx context.Context, courseID string, status models.SessionStatus) ([]models.CourseSession, bool, error)
	GetSession(ctx context.Context, id string) (*models.CourseSession, error)
	UpdateSession(ctx context.Context, id string, patch dto.SessionPatch, actor *models.JWTClaims) (*models.CourseSession, error)
	DeleteSchedule(ctx context.Context, id string, actor *models.JWTClaims) error
}

type conflictChecker interface {
	Check(ctx context.Context, query dto.ConflictQuery) (*models.ConflictReport, error)
}

type rosterExporter interface {
	SessionRoster(ctx context.Context, courseID string, format export.Format, actor *models.JWTClaims) (*service.ExportResult, error)
}

// ScheduleHandler exposes recurrence generation, session and conflict endpoints.
type ScheduleHandler struct {
	sessions  sessionManager
	conflicts conflictChecker
	exports   rosterExporter
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(sessions *service.SessionService, conflicts *service.ConflictService, exports *service.ExportService) *ScheduleHandler {
	return &ScheduleHandler{sessions: sessions, conflicts: conflicts, exports: exports}
}

// Generate godoc
// @Summary Generate sessions from a recurrence rule
// @Description Expands the rule into dated sessions in one transaction. Location and instructor overlaps are reported in conflicts but do not block creation.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ScheduleRequest true "Recurrence rule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/schedules [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := bindStrict(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.sessions.GenerateSessions(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListSchedules godoc
// @Summary List recurrence rules of a course
// @Tags Scheduling
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedules [get]
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.sessions.ListSchedules(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// ListSessions godoc
// @Summary List sessions of a course
// @Tags Scheduling
// @Produce json
// @Param id path string true "Course ID"
// @Param status query string false "scheduled, cancelled or completed"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/sessions [get]
func (h *ScheduleHandler) ListSessions(c *gin.Context) {
	status := models.SessionStatus(strings.TrimSpace(c.Query("status")))
	sessions, hit, err := h.sessions.ListSessions(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, sessions, nil, middleware.ExtractMeta(c))
}

// ExportSessions godoc
// @Summary Export the session roster of a course
// @Tags Scheduling
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /courses/{id}/sessions/export [get]
func (h *ScheduleHandler) ExportSessions(c *gin.Context) {
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	result, err := h.exports.SessionRoster(c.Request.Context(), c.Param("id"), format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.ContentType, result.Filename, result.Payload)
}

// GetSession godoc
// @Summary Get session
// @Tags Scheduling
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *ScheduleHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// UpdateSession godoc
// @Summary Update session status or capacity
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.SessionPatch true "Session patch"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id} [patch]
func (h *ScheduleHandler) UpdateSession(c *gin.Context) {
	var patch dto.SessionPatch
	if err := bindStrict(c, &patch); err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.sessions.UpdateSession(c.Request.Context(), c.Param("id"), patch, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// DeleteSchedule godoc
// @Summary Delete a recurrence rule and its sessions
// @Tags Scheduling
// @Param id path string true "Schedule ID"
// @Success 204
// @Security BearerAuth
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	if err := h.sessions.DeleteSchedule(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ValidateSchedule godoc
// @Summary Check a time window for location and instructor conflicts
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.ConflictQuery true "Window to check"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /validate-schedule [post]
func (h *ScheduleHandler) ValidateSchedule(c *gin.Context) {
	var query dto.ConflictQuery
	if err := bindStrict(c, &query); err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.conflicts.Check(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
