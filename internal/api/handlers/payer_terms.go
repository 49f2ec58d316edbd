package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/confirming/marketplace/internal/domain"
	"github.com/confirming/marketplace/internal/service"
	"github.com/confirming/marketplace/pkg/rut"
)

// PayerTermsHandler handles a financier's standing payer conditions and payer KPIs
type PayerTermsHandler struct {
	registry    *service.RegistryService
	marketplace *service.MarketplaceService
}

// NewPayerTermsHandler creates a new payer terms handler
func NewPayerTermsHandler(registry *service.RegistryService, marketplace *service.MarketplaceService) *PayerTermsHandler {
	return &PayerTermsHandler{
		registry:    registry,
		marketplace: marketplace,
	}
}

// Set handles PUT /api/v1/payer-terms
func (h *PayerTermsHandler) Set(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	var req domain.SetPayerTermsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	terms, err := h.registry.SetPayerTerms(r.Context(), financierID, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, terms)
}

// List handles GET /api/v1/payer-terms
func (h *PayerTermsHandler) List(w http.ResponseWriter, r *http.Request) {
	financierID, ok := financierFrom(w, r)
	if !ok {
		return
	}

	terms, err := h.registry.ListPayerTerms(r.Context(), financierID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payer_terms": terms})
}

// KPIs handles GET /api/v1/payers/{rut}/kpis
func (h *PayerTermsHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	payer, err := rut.Parse(chi.URLParam(r, "rut"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	kpis, err := h.marketplace.PayerKPIs(r.Context(), payer)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, kpis)
}
