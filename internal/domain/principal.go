package domain

import "errors"

// Principal is the authenticated caller of the API: a teller, an operator
// console, or another service holding a signed token.
type Principal struct {
	Subject string
	Role    Role
}

// Role represents a caller's access level
type Role string

const (
	// RoleAdmin can open accounts and move money directly
	RoleAdmin Role = "admin"

	// RoleOperator can submit and resubmit cheques
	RoleOperator Role = "operator"

	// RoleViewer can only read records and the queue
	RoleViewer Role = "viewer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// Satisfies reports whether r grants at least the access of min.
func (r Role) Satisfies(min Role) bool {
	switch min {
	case RoleAdmin:
		return r == RoleAdmin
	case RoleOperator:
		return r == RoleAdmin || r == RoleOperator
	case RoleViewer:
		return r.IsValid()
	}
	return false
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
