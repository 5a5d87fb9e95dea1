package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

func TestIdentityIssueAndValidate(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "s3cret", Issuer: "auth.traininjapan"})

	token, err := svc.IssueToken(models.JWTClaims{UserID: "school-user", Email: "owner@dojo.jp", Role: models.RoleSchool, SchoolID: "school-1"}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "school-user", claims.UserID)
	assert.Equal(t, "school-1", claims.SchoolID)
	assert.Equal(t, models.RoleSchool, claims.Role)
	assert.Equal(t, "school-user", claims.Subject)
}

func TestIdentityRejectsForeignSignatureAndIssuer(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "s3cret", Issuer: "auth.traininjapan"})

	forged, err := NewIdentityService(IdentityConfig{Secret: "other", Issuer: "auth.traininjapan"}).
		IssueToken(models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer, err := NewIdentityService(IdentityConfig{Secret: "s3cret", Issuer: "elsewhere"}).
		IssueToken(models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestIdentityRejectsUnknownRoleAndExpiredTokens(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "s3cret"})

	token, err := svc.IssueToken(models.JWTClaims{UserID: "u1", Role: "superuser"}, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestIdentityRejectsNoneAlgorithm(t *testing.T) {
	svc := NewIdentityService(IdentityConfig{Secret: "s3cret"})
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
