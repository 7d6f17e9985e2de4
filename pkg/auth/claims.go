package auth

import (
	"github.com/angelmondragon/crewsync/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	EmployeeID string
	DeviceID   string
	Role       enums.AgentRole
	JTI        string
}

// AccessTokenClaims represents the typed JWT accepted by the control API.
type AccessTokenClaims struct {
	EmployeeID string          `json:"employee_id"`
	DeviceID   string          `json:"device_id,omitempty"`
	Role       enums.AgentRole `json:"role"`
	jwt.RegisteredClaims
}

// CanActFor reports whether the caller may read or write employeeID's data.
func (c *AccessTokenClaims) CanActFor(employeeID string) bool {
	if c == nil {
		return false
	}
	if c.Role == enums.AgentRoleGateway {
		return true
	}
	return employeeID != "" && c.EmployeeID == employeeID
}
