package handler

import (
	"bytes"
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
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type bookingServiceMock struct {
	captured dto.BookSessionsRequest
	actor    *models.JWTClaims
	err      error
}

func (m *bookingServiceMock) BookSessions(ctx context.Context, req dto.BookSessionsRequest, actor *models.JWTClaims) (*models.SessionBookingResult, error) {
	m.captured = req
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.SessionBookingResult{BookingID: "booking-1", TotalPrice: 30000, SessionsBooked: len(req.SessionIDs)}, nil
}

func (m *bookingServiceMock) CreateCourseBooking(ctx context.Context, courseID string, req dto.CourseBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	return &models.Booking{ID: "booking-2", CourseID: courseID}, m.err
}

func (m *bookingServiceMock) CancelBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Booking{ID: id, Status: models.BookingStatusCancelled}, nil
}

func (m *bookingServiceMock) ConfirmBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	return &models.Booking{ID: id, Status: models.BookingStatusConfirmed}, nil
}

func (m *bookingServiceMock) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Booking, error) {
	return []models.Booking{}, nil
}

func (m *bookingServiceMock) ListBySchool(ctx context.Context, schoolID string, actor *models.JWTClaims) ([]models.Booking, error) {
	return []models.Booking{}, nil
}

func newJSONContext(method, path, body string, actor *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if actor != nil {
		c.Set(middleware.ContextUserKey, actor)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Error map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestBookSessionsCreated(t *testing.T) {
	mock := &bookingServiceMock{}
	h := &BookingHandler{service: mock}
	actor := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	c, w := newJSONContext(http.MethodPost, "/bookings/sessions",
		`{"session_ids":["a","b","c"],"student_name":"Aiko","student_email":"aiko@example.com"}`, actor)

	h.BookSessions(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"a", "b", "c"}, mock.captured.SessionIDs)
	assert.Equal(t, "Aiko", mock.captured.StudentName)
	assert.Equal(t, "s1", mock.actor.UserID)

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body.Data["sessions_booked"])
}

func TestBookSessionsRejectsUnknownFields(t *testing.T) {
	h := &BookingHandler{service: &bookingServiceMock{}}
	c, w := newJSONContext(http.MethodPost, "/bookings/sessions",
		`{"session_ids":["a"],"student_name":"Aiko","student_email":"aiko@example.com","price":1}`, nil)

	h.BookSessions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Contains(t, errBody["message"], "price")
}

func TestBookSessionsRejectsMalformedJSON(t *testing.T) {
	h := &BookingHandler{service: &bookingServiceMock{}}
	for _, body := range []string{``, `{"session_ids":`, `{"session_ids":"a"}`, `{} {}`} {
		c, w := newJSONContext(http.MethodPost, "/bookings/sessions", body, nil)
		h.BookSessions(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestBookSessionsCapacityConflict(t *testing.T) {
	mock := &bookingServiceMock{err: appErrors.Clone(appErrors.ErrCapacityExceeded, "Session on 2026-03-02 is full")}
	h := &BookingHandler{service: mock}
	c, w := newJSONContext(http.MethodPost, "/bookings/sessions",
		`{"session_ids":["a"],"student_name":"Aiko","student_email":"aiko@example.com"}`, nil)

	h.BookSessions(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, "CAPACITY_EXCEEDED", errBody["code"])
	assert.Equal(t, "Session on 2026-03-02 is full", errBody["message"])
}

func TestCancelBookingPreconditionFailed(t *testing.T) {
	mock := &bookingServiceMock{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "Booking is already cancelled")}
	h := &BookingHandler{service: mock}
	c, w := newJSONContext(http.MethodPatch, "/bookings/b1/cancel", "", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	h.Cancel(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}
