package domain

import (
	"github.com/google/uuid"

	"github.com/confirming/marketplace/pkg/rut"
)

// Role identifies what an authenticated caller can do
type Role string

const (
	RoleProvider   Role = "provider"
	RolePayer      Role = "payer"
	RoleFinancier  Role = "financier"
	RoleBackOffice Role = "backoffice"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleProvider, RolePayer, RoleFinancier, RoleBackOffice:
		return true
	default:
		return false
	}
}

// Actor is the authenticated caller of a command or query.
// Providers and payers are identified by RUT; financiers by id and fund.
type Actor struct {
	Subject     string     `json:"sub"`
	Role        Role       `json:"role"`
	Rut         rut.RUT    `json:"rut,omitempty"`
	FinancierID *uuid.UUID `json:"financier_id,omitempty"`
	FundID      *uuid.UUID `json:"fund_id,omitempty"`
}

// IsProviderOf reports whether the actor issued the invoice
func (a Actor) IsProviderOf(inv *Invoice) bool {
	return a.Role == RoleProvider && !a.Rut.IsZero() && a.Rut == inv.IssuerRut
}

// IsPayerOf reports whether the invoice is owed by the actor
func (a Actor) IsPayerOf(inv *Invoice) bool {
	return a.Role == RolePayer && !a.Rut.IsZero() && a.Rut == inv.ReceiverRut
}

// TokenResponse represents an issued bearer token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenRequest asks the back office to issue a token for a provisioned actor
type TokenRequest struct {
	Subject     string     `json:"subject" validate:"required,max=200"`
	Role        Role       `json:"role" validate:"required,oneof=provider payer financier backoffice"`
	Rut         string     `json:"rut,omitempty"`
	FinancierID *uuid.UUID `json:"financier_id,omitempty"`
}
