package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleSchool  UserRole = "school"
	RoleAdmin   UserRole = "admin"
)

// JWTClaims is the identity asserted by the auth service for every request.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	SchoolID string   `json:"school_id,omitempty"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the identity may manage school resources.
func (c *JWTClaims) IsStaff() bool {
	return c != nil && (c.Role == RoleSchool || c.Role == RoleAdmin)
}

// IsAdmin reports whether the identity is a platform administrator.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// OwnsSchool reports whether the identity can act on resources of schoolID.
// Admins own every school.
func (c *JWTClaims) OwnsSchool(schoolID string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin {
		return true
	}
	return c.Role == RoleSchool && c.SchoolID != "" && c.SchoolID == schoolID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
