package handlers

import (
	"net/http"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
)

// FundHandler handles fund, financier and cost-of-funds HTTP requests
type FundHandler struct {
	registry *service.RegistryService
}

// NewFundHandler creates a new fund handler
func NewFundHandler(registry *service.RegistryService) *FundHandler {
	return &FundHandler{
		registry: registry,
	}
}

// Create handles POST /api/v1/admin/funds
func (h *FundHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.registry.CreateFund(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// List handles GET /api/v1/admin/funds
func (h *FundHandler) List(w http.ResponseWriter, r *http.Request) {
	funds, err := h.registry.ListActiveFunds(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"funds": funds})
}

// Deactivate handles POST /api/v1/admin/funds/{fundID}/deactivate
func (h *FundHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}

	fund, err := h.registry.DeactivateFund(r.Context(), fundID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, fund)
}

// RegisterInFund handles POST /api/v1/admin/funds/{fundID}/financiers
func (h *FundHandler) RegisterInFund(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}

	var req domain.RegisterFinancierRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	financier, err := h.registry.RegisterFinancierInFund(r.Context(), fundID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, financier)
}

// RegisterFinancier handles POST /api/v1/funds/{fundID}/financiers
func (h *FundHandler) RegisterFinancier(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}
	adminID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	var req domain.RegisterFinancierRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	financier, err := h.registry.RegisterFinancier(r.Context(), adminID, fundID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, financier)
}

// ListFinanciers handles GET /api/v1/funds/{fundID}/financiers
func (h *FundHandler) ListFinanciers(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}
	adminID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	financiers, err := h.registry.ListFinanciers(r.Context(), adminID, fundID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"financiers": financiers})
}

// ToggleAdmin handles POST /api/v1/funds/{fundID}/financiers/{financierID}/toggle-admin
func (h *FundHandler) ToggleAdmin(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, r, "financierID")
	if !ok {
		return
	}
	adminID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	financier, err := h.registry.ToggleAdmin(r.Context(), adminID, fundID, targetID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, financier)
}

// PublishCostOfFunds handles POST /api/v1/funds/{fundID}/cost-of-funds
func (h *FundHandler) PublishCostOfFunds(w http.ResponseWriter, r *http.Request) {
	fundID, ok := pathUUID(w, r, "fundID")
	if !ok {
		return
	}
	adminID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	var req domain.PublishCostOfFundsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.registry.PublishDailyCost(r.Context(), adminID, fundID, req.MonthlyRate)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Admission handles GET /api/v1/financiers/me/admission
func (h *FundHandler) Admission(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	status, err := h.registry.AdmissionStatus(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
