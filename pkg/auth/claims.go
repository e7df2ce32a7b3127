package auth

import (
	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorTokenPayload captures the data available when minting an operator JWT.
type OperatorTokenPayload struct {
	OperatorID string
	Name       string
	Role       enums.OperatorRole
	AgencyID   string
	JTI        string
}

// OperatorClaims represents the typed JWT presented by console operators.
// AgencyID is set for agency operators and scopes the orders they may act on.
type OperatorClaims struct {
	OperatorID string             `json:"operator_id"`
	Name       string             `json:"name,omitempty"`
	Role       enums.OperatorRole `json:"role"`
	AgencyID   string             `json:"agency_id,omitempty"`
	jwt.RegisteredClaims
}
