package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role an access token grants.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
)

// JWTClaims represents the access token payload minted by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanManageTimetables reports whether the role may mutate timetables.
func (c *JWTClaims) CanManageTimetables() bool {
	if c == nil {
		return false
	}
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}
