package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

// AuthService issues and validates bearer tokens carrying the caller's role
type AuthService struct {
	funds     FundStore
	jwtSecret []byte
	ttl       time.Duration
	clock     Clock
}

// NewAuthService creates a new auth service
func NewAuthService(funds FundStore, jwtSecret string, ttl time.Duration, clock Clock) *AuthService {
	return &AuthService{
		funds:     funds,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		clock:     clock,
	}
}

// IssueToken provisions a token for an actor. Providers and payers need a valid RUT;
// financiers must exist, and their fund is taken from the registry.
func (s *AuthService) IssueToken(ctx context.Context, req *domain.TokenRequest) (*domain.TokenResponse, error) {
	actor := domain.Actor{Subject: req.Subject, Role: req.Role}

	switch req.Role {
	case domain.RoleProvider, domain.RolePayer:
		r, err := rut.Parse(req.Rut)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, req.Rut)
		}
		actor.Rut = r
	case domain.RoleFinancier:
		if req.FinancierID == nil {
			return nil, fmt.Errorf("%w: financier_id is required", domain.ErrInvalidInput)
		}
		f, err := s.funds.FindFinancier(ctx, *req.FinancierID)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("%w: financier %s", domain.ErrNotFound, *req.FinancierID)
		}
		actor.FinancierID = &f.ID
		actor.FundID = &f.FundID
	case domain.RoleBackOffice:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, req.Role)
	}

	return s.GenerateToken(actor)
}

// GenerateToken signs a token for the actor
func (s *AuthService) GenerateToken(actor domain.Actor) (*domain.TokenResponse, error) {
	now := s.clock.Now()

	claims := jwt.MapClaims{
		"sub":  actor.Subject,
		"role": string(actor.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	if !actor.Rut.IsZero() {
		claims["rut"] = actor.Rut.String()
	}
	if actor.FinancierID != nil {
		claims["financier_id"] = actor.FinancierID.String()
	}
	if actor.FundID != nil {
		claims["fund_id"] = actor.FundID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

// ValidateToken validates a JWT and returns the actor it was issued to
func (s *AuthService) ValidateToken(tokenString string) (*domain.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredentials
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	actor := &domain.Actor{}
	actor.Subject, _ = claims["sub"].(string)
	role, _ := claims["role"].(string)
	actor.Role = domain.Role(role)
	if !actor.Role.IsValid() {
		return nil, ErrInvalidCredentials
	}

	if raw, ok := claims["rut"].(string); ok {
		r, err := rut.Parse(raw)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		actor.Rut = r
	}
	if actor.FinancierID, err = optionalUUID(claims, "financier_id"); err != nil {
		return nil, ErrInvalidCredentials
	}
	if actor.FundID, err = optionalUUID(claims, "fund_id"); err != nil {
		return nil, ErrInvalidCredentials
	}

	switch actor.Role {
	case domain.RoleProvider, domain.RolePayer:
		if actor.Rut.IsZero() {
			return nil, ErrInvalidCredentials
		}
	case domain.RoleFinancier:
		if actor.FinancierID == nil || actor.FundID == nil {
			return nil, ErrInvalidCredentials
		}
	}

	return actor, nil
}

func optionalUUID(claims jwt.MapClaims, key string) (*uuid.UUID, error) {
	raw, ok := claims[key].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
