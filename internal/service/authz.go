package service

import (
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

func requireIdentity(actor *models.JWTClaims) error {
	if actor == nil || actor.UserID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

func requireStaff(actor *models.JWTClaims) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only schools and admins can perform this action")
	}
	return nil
}

func requireAdmin(actor *models.JWTClaims) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can perform this action")
	}
	return nil
}

// requireSchoolOwner passes admins and school accounts acting on their own school.
func requireSchoolOwner(actor *models.JWTClaims, schoolID, resource string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if !actor.OwnsSchool(schoolID) {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only manage your own school's "+resource)
	}
	return nil
}
