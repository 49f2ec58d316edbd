package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/pkg/rut"
)

const testSecret = "test-secret"

func newAuth(e *env) *AuthService {
	return NewAuthService(e.store.Funds(), testSecret, time.Hour, e.clock)
}

func TestIssueAndValidateToken(t *testing.T) {
	e := newEnv()
	auth := newAuth(e)
	ctx := context.Background()

	t.Run("provider", func(t *testing.T) {
		token, err := auth.IssueToken(ctx, &domain.TokenRequest{Subject: "proveedora", Role: domain.RoleProvider, Rut: "76.086.428-5"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer", token.TokenType)
		assert.Equal(t, 3600, token.ExpiresIn)

		actor, err := auth.ValidateToken(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleProvider, actor.Role)
		assert.Equal(t, providerRut, actor.Rut)
		assert.Nil(t, actor.FinancierID)
	})

	t.Run("financier takes its fund from the registry", func(t *testing.T) {
		admin := e.admittedFund(t, "Fondo Norte", "1.0")

		token, err := auth.IssueToken(ctx, &domain.TokenRequest{Subject: "ana", Role: domain.RoleFinancier, FinancierID: &admin.ID})
		require.NoError(t, err)

		actor, err := auth.ValidateToken(token.AccessToken)
		require.NoError(t, err)
		require.NotNil(t, actor.FinancierID)
		require.NotNil(t, actor.FundID)
		assert.Equal(t, admin.ID, *actor.FinancierID)
		assert.Equal(t, admin.FundID, *actor.FundID)
	})

	t.Run("back office", func(t *testing.T) {
		token, err := auth.IssueToken(ctx, &domain.TokenRequest{Subject: "ops", Role: domain.RoleBackOffice})
		require.NoError(t, err)

		actor, err := auth.ValidateToken(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleBackOffice, actor.Role)
	})
}

func TestIssueTokenRejections(t *testing.T) {
	e := newEnv()
	auth := newAuth(e)
	ctx := context.Background()

	_, err := auth.IssueToken(ctx, &domain.TokenRequest{Subject: "x", Role: domain.RolePayer, Rut: "11111111-2"})
	assert.ErrorIs(t, err, rut.ErrInvalid)

	_, err = auth.IssueToken(ctx, &domain.TokenRequest{Subject: "x", Role: domain.RoleFinancier})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	missing := newID()
	_, err = auth.IssueToken(ctx, &domain.TokenRequest{Subject: "x", Role: domain.RoleFinancier, FinancierID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = auth.IssueToken(ctx, &domain.TokenRequest{Subject: "x", Role: "auditor"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateTokenRejections(t *testing.T) {
	e := newEnv()
	auth := newAuth(e)

	sign := func(claims jwt.MapClaims, secret string) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	exp := e.clock.At.Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.MapClaims{"sub": "x", "role": "backoffice", "exp": exp}, "other")},
		{"expired", sign(jwt.MapClaims{"sub": "x", "role": "backoffice", "exp": e.clock.At.Add(-time.Minute).Unix()}, testSecret)},
		{"unknown role", sign(jwt.MapClaims{"sub": "x", "role": "auditor", "exp": exp}, testSecret)},
		{"provider without rut", sign(jwt.MapClaims{"sub": "x", "role": "provider", "exp": exp}, testSecret)},
		{"financier without fund", sign(jwt.MapClaims{"sub": "x", "role": "financier", "financier_id": newID().String(), "exp": exp}, testSecret)},
		{"bad rut claim", sign(jwt.MapClaims{"sub": "x", "role": "payer", "rut": "11111111-2", "exp": exp}, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}
