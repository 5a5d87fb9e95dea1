package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type waitlistServiceMock struct {
	joined dto.JoinWaitlistRequest
	left   string
}

func (m *waitlistServiceMock) Join(ctx context.Context, courseID string, req dto.JoinWaitlistRequest, actor *models.JWTClaims) (*dto.JoinWaitlistResponse, error) {
	m.joined = req
	return &dto.JoinWaitlistResponse{WaitlistID: "wl-1", Position: 3}, nil
}

func (m *waitlistServiceMock) Leave(ctx context.Context, waitlistID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if waitlistID != "wl-1" {
		return appErrors.ErrNotFound
	}
	m.left = waitlistID
	return nil
}

func (m *waitlistServiceMock) List(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.WaitlistEntry, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return []models.WaitlistEntry{{ID: "wl-1", CourseID: courseID, Position: 1, Rank: 1}}, nil
}

func TestJoinWaitlist(t *testing.T) {
	mock := &waitlistServiceMock{}
	h := &WaitlistHandler{service: mock}
	actor := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}

	c, w := newJSONContext(http.MethodPost, "/courses/c1/waitlist", `{"student_name":"Ken","student_email":"ken@example.com"}`, actor)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.Join(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Data dto.JoinWaitlistResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.Position)
	assert.Equal(t, "Ken", mock.joined.StudentName)

	c, w = newJSONContext(http.MethodPost, "/courses/c1/waitlist", `{"student_name":"Ken","position":1}`, actor)
	h.Join(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndLeaveWaitlist(t *testing.T) {
	mock := &waitlistServiceMock{}
	h := &WaitlistHandler{service: mock}

	c, w := newJSONContext(http.MethodGet, "/courses/c1/waitlist", "", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	h.List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	actor := &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}
	c, _ = newJSONContext(http.MethodDelete, "/waitlist/wl-1", "", actor)
	c.Params = gin.Params{{Key: "id", Value: "wl-1"}}
	h.Leave(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "wl-1", mock.left)

	c, w = newJSONContext(http.MethodDelete, "/waitlist/other", "", actor)
	c.Params = gin.Params{{Key: "id", Value: "other"}}
	h.Leave(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
