package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/middleware"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/service"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
	"github.com/traininjapan/booking-api/pkg/export"
)

type sessionServiceMock struct {
	generated dto.ScheduleRequest
	status    models.SessionStatus
	hit       bool
}

func (m *sessionServiceMock) GenerateSessions(ctx context.Context, courseID string, req dto.ScheduleRequest, actor *models.JWTClaims) (*models.GeneratedSchedule, error) {
	m.generated = req
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrInvalidSchedule, "end_time must be after start_time")
	}
	return &models.GeneratedSchedule{ScheduleID: "sched-1", SessionsCreated: 2, SessionIDs: []string{"a", "b"}}, nil
}

func (m *sessionServiceMock) ListSchedules(ctx context.Context, courseID string) ([]models.CourseSchedule, error) {
	return []models.CourseSchedule{}, nil
}

func (m *sessionServiceMock) ListSessions(ctx context.Context, courseID string, status models.SessionStatus) ([]models.CourseSession, bool, error) {
	m.status = status
	return []models.CourseSession{{ID: "a", CourseID: courseID}}, m.hit, nil
}

func (m *sessionServiceMock) GetSession(ctx context.Context, id string) (*models.CourseSession, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}

func (m *sessionServiceMock) UpdateSession(ctx context.Context, id string, patch dto.SessionPatch, actor *models.JWTClaims) (*models.CourseSession, error) {
	return &models.CourseSession{ID: id, MaxCapacity: *patch.MaxCapacity}, nil
}

func (m *sessionServiceMock) DeleteSchedule(ctx context.Context, id string, actor *models.JWTClaims) error {
	return nil
}

type conflictServiceMock struct{}

func (conflictServiceMock) Check(ctx context.Context, query dto.ConflictQuery) (*models.ConflictReport, error) {
	return &models.ConflictReport{
		LocationConflicts:   []models.SessionConflict{{SessionID: "x"}},
		InstructorConflicts: []models.SessionConflict{},
		HasConflicts:        true,
	}, nil
}

type exporterMock struct {
	format export.Format
}

func (m *exporterMock) SessionRoster(ctx context.Context, courseID string, format export.Format, actor *models.JWTClaims) (*service.ExportResult, error) {
	m.format = format
	return &service.ExportResult{Filename: "roster-kendo-20260301.csv", ContentType: "text/csv", Payload: []byte("Date\n")}, nil
}

func newScheduleRouter(sessions *sessionServiceMock, exporter *exporterMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &ScheduleHandler{sessions: sessions, conflicts: conflictServiceMock{}, exports: exporter}
	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.POST("/courses/:id/schedules", h.Generate)
	r.GET("/courses/:id/sessions", h.ListSessions)
	r.GET("/courses/:id/sessions/export", h.ExportSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.PATCH("/sessions/:id", h.UpdateSession)
	r.POST("/validate-schedule", h.ValidateSchedule)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	c, w := newJSONContext(method, path, body, nil)
	r.ServeHTTP(w, c.Request)
	return w
}

func TestGenerateSchedule(t *testing.T) {
	sessions := &sessionServiceMock{}
	r := newScheduleRouter(sessions, &exporterMock{})

	w := serve(r, http.MethodPost, "/courses/course-1/schedules",
		`{"start_date":"2026-03-02","end_date":"2026-03-08","start_time":"18:00","end_time":"19:00","recurrence_type":"weekly","recurrence_days":[1,3]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []int{1, 3}, sessions.generated.RecurrenceDays)

	w = serve(r, http.MethodPost, "/courses/course-1/schedules",
		`{"start_date":"2026-03-02","end_date":"2026-03-08","start_time":"19:00","end_time":"18:00","recurrence_type":"daily"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SCHEDULE", decodeError(t, w)["code"])

	w = serve(r, http.MethodPost, "/courses/course-1/schedules", `{"start_date":"2026-03-02","every":"tuesday"}`)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w)["code"])
}

func TestListSessionsReportsCacheHit(t *testing.T) {
	sessions := &sessionServiceMock{hit: true}
	r := newScheduleRouter(sessions, &exporterMock{})

	w := serve(r, http.MethodGet, "/courses/course-1/sessions?status=scheduled", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusScheduled, sessions.status)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var body struct {
		Data []models.CourseSession `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestExportSessionsStreamsAttachment(t *testing.T) {
	exporter := &exporterMock{}
	r := newScheduleRouter(&sessionServiceMock{}, exporter)

	w := serve(r, http.MethodGet, "/courses/course-1/sessions/export?format=CSV", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatCSV, exporter.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="roster-kendo-20260301.csv"`)
	assert.Equal(t, "Date\n", w.Body.String())
}

func TestSessionEndpoints(t *testing.T) {
	r := newScheduleRouter(&sessionServiceMock{}, &exporterMock{})

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/sessions/nope", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPatch, "/sessions/a", `{"max_capacity":4}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPatch, "/sessions/a", `{"current_enrollment":4}`).Code)

	w := serve(r, http.MethodPost, "/validate-schedule",
		`{"location_id":"loc-1","start_date":"2026-03-02","end_date":"2026-03-02","start_time":"18:00","end_time":"19:00"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_conflicts":true`)
}
