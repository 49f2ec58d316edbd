package handlers

import (
	"net/http"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
)

// AuthHandler handles token issuance
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Token handles POST /api/v1/admin/tokens
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.authService.IssueToken(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tokenResp)
}
