package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/traininjapan/booking-api/internal/handler"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/service"
	"github.com/traininjapan/booking-api/pkg/config"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func newTestRouter(env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, &config.Config{Env: env, APIPrefix: "/api/v1"}, routeHandlers{
		identity: tokenTable{
			"student": {UserID: "u1", Role: models.RoleStudent},
			"school":  {UserID: "u2", Role: models.RoleSchool, SchoolID: "school-1"},
			"admin":   {UserID: "u3", Role: models.RoleAdmin},
		},
		courses:     handler.NewCourseHandler(nil),
		schedules:   handler.NewScheduleHandler(nil, nil, nil),
		bookings:    handler.NewBookingHandler(nil),
		waitlist:    handler.NewWaitlistHandler(nil),
		locations:   handler.NewLocationHandler(nil),
		instructors: handler.NewInstructorHandler(nil, nil),
		metrics:     handler.NewMetricsHandler(service.NewMetricsService(), nil, nil),
	})
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProbesAreUnauthenticated(t *testing.T) {
	r := newTestRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/metrics", "").Code)
}

func TestStaffRoutesEnforceRoles(t *testing.T) {
	r := newTestRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodPost, "/api/v1/courses", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodPost, "/api/v1/courses", "forged").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodPost, "/api/v1/locations", "student").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodPatch, "/api/v1/courses/c1/approve-first", "school").Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/v1/metrics/summary", "admin").Code)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	r := newTestRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/api/v1/bookings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodPost, "/api/v1/courses/c1/waitlist", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodDelete, "/api/v1/waitlist/w1", "").Code)
}

func TestDocsHiddenInProduction(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, doRequest(newTestRouter(config.EnvProduction), http.MethodGet, "/docs/index.html", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(newTestRouter(config.EnvDevelopment), http.MethodGet, "/docs/index.html", "").Code)
}
